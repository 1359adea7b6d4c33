package handlers

import (
	"errors"
	"net/http"
	"reportrelay/internal/chain"
	"reportrelay/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error kinds that never reach the chain.
const (
	KindValidation = "validation"
	KindBadRequest = "bad_request"
	KindJournal    = "journal_not_found"
)

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind"`
	Details []string `json:"details,omitempty"`
}

// RenderError writes err with the status its kind maps to.
func RenderError(c *gin.Context, err error) {
	code, body := errorResponse(err)
	c.AbortWithStatusJSON(code, body)
}

// BadRequest is used for malformed path and query values.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Error: message, Kind: KindBadRequest})
}

func errorResponse(err error) (int, ErrorBody) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorBody{
			Error:   "invalid report",
			Kind:    KindValidation,
			Details: verr.Problems,
		}
	}

	body := ErrorBody{Error: err.Error(), Kind: chain.Kind(err)}
	switch {
	case errors.Is(err, services.ErrSubmissionNotFound):
		body.Kind = KindJournal
		return http.StatusNotFound, body
	case errors.Is(err, chain.ErrReportNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, chain.ErrChainRejected):
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, chain.ErrConnectivity):
		return http.StatusBadGateway, body
	case errors.Is(err, chain.ErrTimeout):
		return http.StatusGatewayTimeout, body
	default:
		return http.StatusInternalServerError, body
	}
}

// bindingError turns a gin binding failure into a ValidationError so it
// renders like the service's own checks.
func bindingError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return &services.ValidationError{Problems: []string{"malformed JSON body: " + err.Error()}}
	}

	problems := make([]string, 0, len(fields))
	for _, fe := range fields {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fe.Field()+" is required")
		case "min":
			problems = append(problems, fe.Field()+" needs at least "+fe.Param()+" entries")
		default:
			problems = append(problems, fe.Field()+" failed "+fe.Tag())
		}
	}
	return &services.ValidationError{Problems: problems}
}
