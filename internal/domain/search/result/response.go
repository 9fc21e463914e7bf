package result

import "encoding/json"

// Response is the outcome written back to the request record.
// errorMessage is present iff the request failed; results are never nil.
type Response struct {
	results    []Result
	successful bool
	errMessage string
}

// Success creates a successful response.
func Success(results []Result) Response {
	if results == nil {
		results = []Result{}
	}
	return Response{results: results, successful: true}
}

// Failure creates a failed response carrying err's description.
func Failure(err error) Response {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Response{results: []Result{}, errMessage: msg}
}

// Results returns the ordered hits.
func (r *Response) Results() []Result { return r.results }

// IsSuccessful reports whether the pipeline completed.
func (r *Response) IsSuccessful() bool { return r.successful }

// ErrorMessage returns the failure description (empty on success).
func (r *Response) ErrorMessage() string { return r.errMessage }

type wireResponse struct {
	Result       []Result `json:"result"`
	IsSuccessful bool     `json:"isSuccessful"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// MarshalJSON encodes the response in the stored record layout.
func (r Response) MarshalJSON() ([]byte, error) {
	results := r.results
	if results == nil {
		results = []Result{}
	}
	return json.Marshal(wireResponse{
		Result:       results,
		IsSuccessful: r.successful,
		ErrorMessage: r.errMessage,
	})
}
