package common

// MutationResponse is the wire shape every mutation returns (spec §6/§7):
// user-visible responses never throw — they report success=false instead.
type MutationResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	SagaID  string `json:"sagaId,omitempty"`
}

// OK builds a successful mutation response.
func OK(data any) MutationResponse {
	return MutationResponse{Success: true, Data: data}
}

// OKWithSaga builds a successful mutation response tied to a saga run.
func OKWithSaga(data any, sagaID string) MutationResponse {
	return MutationResponse{Success: true, Data: data, SagaID: sagaID}
}

// Fail builds a failed mutation response from one or more errors. Only
// Kind+Message are surfaced, never internal Context.
func Fail(errs ...error) MutationResponse {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		if e, ok := err.(*Error); ok {
			messages = append(messages, string(e.Kind)+": "+e.Message)
		} else {
			messages = append(messages, err.Error())
		}
	}
	return MutationResponse{Success: false, Errors: messages}
}
