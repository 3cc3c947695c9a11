package gigachat

import "fmt"

// TranslationError indicates that a request or response shape could not be
// mapped between the OpenAI and GigaChat dialects. It is distinct from a
// backend failure: retrying the same input cannot succeed, so orchestration
// surfaces it to the client as a 400 without retry.
type TranslationError struct {
	Message string
}

func (e *TranslationError) Error() string {
	return e.Message
}

// newTranslationErrorf builds a TranslationError with a formatted message.
func newTranslationErrorf(format string, args ...interface{}) *TranslationError {
	return &TranslationError{Message: fmt.Sprintf(format, args...)}
}
