package schema

import "errors"

// ErrExternalService marks failures of the services the pipeline consumes
// but does not own: vector search and the language model. Call sites wrap
// it so callers can recognize the recoverable class with errors.Is; the
// pipeline's stages absorb these failures and degrade rather than abort.
var ErrExternalService = errors.New("external service failure")
