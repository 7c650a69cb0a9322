package domain

import "github.com/google/uuid"

// TranslationFailedPlaceholder is stored on an exchange when translation
// fails; the UI renders it verbatim and the call is never retried.
const TranslationFailedPlaceholder = "[translation failed]"

// Exchange is one recognized-and-translated utterance, the atomic unit of
// the conversation log. Side stays mutable until the final transcript lands;
// OriginalFinal is write-once.
type Exchange struct {
	ID              string  `json:"id"`
	Side            Side    `json:"side"`
	OriginalPartial string  `json:"originalPartial"`
	OriginalFinal   *string `json:"originalFinal"`
	Translated      *string `json:"translated"`
}

// NewExchange creates an empty exchange attributed to the given side.
func NewExchange(side Side) *Exchange {
	return &Exchange{ID: uuid.NewString(), Side: side}
}

// Finalized reports whether the final transcript has been applied.
func (e *Exchange) Finalized() bool {
	return e.OriginalFinal != nil
}

// SetFinal fixes the final transcript and clears the live partial text.
// A second call is ignored.
func (e *Exchange) SetFinal(transcript string) bool {
	if e.OriginalFinal != nil {
		return false
	}
	e.OriginalFinal = &transcript
	e.OriginalPartial = ""
	return true
}

// Log is the ordered, append-mostly conversation history. It is not
// goroutine safe; the conversation controller serializes all mutations.
type Log struct {
	entries []*Exchange
}

func NewLog() *Log {
	return &Log{}
}

// Append adds an exchange to the end of the log.
func (l *Log) Append(e *Exchange) {
	l.entries = append(l.entries, e)
}

// Find looks an exchange up by id. The returned pointer aliases the log
// entry; there is no second ownership path.
func (l *Log) Find(id string) *Exchange {
	for _, e := range l.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Len returns the number of exchanges in the log.
func (l *Log) Len() int {
	return len(l.entries)
}

// Snapshot returns a value copy of every exchange, in order, for rendering.
func (l *Log) Snapshot() []Exchange {
	out := make([]Exchange, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	return out
}
