package summarize

import (
	"iter"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/spherical/magsplit/internal/domain"
)

// Encodings ship with the binary; the default loader downloads them.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer converts text to model tokens and back. Decoding the
// concatenation of Encode's output must reproduce the input exactly.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Tiktoken is a Tokenizer backed by the tiktoken BPE encodings.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// fallbackEncoding is used for models tiktoken does not know, such as
// vendor-prefixed OpenRouter model names.
const fallbackEncoding = "o200k_base"

// NewTiktoken returns the encoding used by model.
func NewTiktoken(model string) (*Tiktoken, error) {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, domain.SummarizationError("failed to load tokenizer", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode implements Tokenizer. Special-token text is encoded as ordinary text.
func (t *Tiktoken) Encode(text string) []int {
	return t.enc.EncodeOrdinary(text)
}

// Decode implements Tokenizer.
func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Chunk splits text into pieces of at most maxTokens tokens, cut on token
// boundaries. The sequence is lazy and may be ranged over more than once;
// concatenating its chunks reproduces text byte for byte.
func Chunk(text string, tok Tokenizer, maxTokens int) iter.Seq[string] {
	if maxTokens < 1 {
		maxTokens = DefaultChunkTokens
	}
	return func(yield func(string) bool) {
		tokens := tok.Encode(text)
		for start := 0; start < len(tokens); start += maxTokens {
			end := min(start+maxTokens, len(tokens))
			if !yield(tok.Decode(tokens[start:end])) {
				return
			}
		}
	}
}
