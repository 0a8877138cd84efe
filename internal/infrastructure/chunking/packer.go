package chunking

import "strings"

// packedChunk is a budgeted chunk before annotation.
type packedChunk struct {
	text     string
	sec      section
	oversize bool
}

type packer struct {
	tok    Tokenizer
	policy Policy
}

// accumulator is the fold state of the packing loop: the chunk being
// assembled and the chunks emitted so far.
type accumulator struct {
	buffer string
	chunks []packedChunk
}

func (p packer) pack(sections []section) []packedChunk {
	var out []packedChunk
	for _, sec := range sections {
		out = append(out, p.packSection(sec)...)
	}
	return out
}

func (p packer) packSection(sec section) []packedChunk {
	tokens := p.tok.Count(sec.text)

	// Tables are atomic regardless of size; sections within budget
	// become one chunk verbatim.
	if sec.isTable || tokens <= p.policy.MaxTokens {
		return []packedChunk{{
			text:     sec.text,
			sec:      sec,
			oversize: tokens > p.policy.MaxTokens,
		}}
	}

	acc := accumulator{}
	for _, para := range splitParagraphs(sec.text) {
		if acc.buffer == "" {
			acc.buffer = para
			continue
		}

		candidate := acc.buffer + "\n\n" + para
		if p.tok.Count(candidate) <= p.policy.MaxTokens {
			acc.buffer = candidate
			continue
		}

		// Emit the accumulated chunk and seed the next one with the
		// token-exact tail of what was just emitted, followed by the
		// paragraph that triggered the split.
		p.emit(&acc, sec)
		seed := p.tok.Tail(acc.chunks[len(acc.chunks)-1].text, p.policy.OverlapTokens)
		acc.buffer = seed + "\n\n" + para
	}
	p.emit(&acc, sec)
	return acc.chunks
}

func (p packer) emit(acc *accumulator, sec section) {
	text := strings.TrimSpace(acc.buffer)
	acc.buffer = ""
	if text == "" {
		return
	}
	acc.chunks = append(acc.chunks, packedChunk{
		text: text,
		sec:  sec,
		// A single paragraph over budget is accepted rather than
		// truncated; callers count these as oversize.
		oversize: p.tok.Count(text) > p.policy.MaxTokens,
	})
}

func splitParagraphs(text string) []string {
	blocks := strings.Split(text, "\n\n")
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}
