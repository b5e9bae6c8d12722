package fundserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	fundhttpmapper "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/http/mapper"
	apierrors "github.com/Apurer/fund-ledger/internal/shared/errors"
)

var responder = apierrors.NewChainedResponder("", payloadMapper, apierrors.ReasonMapper)

// respondProblem maps a ProblemDetail through the shared responder.
func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	responder.Respond(c, problem)
}

// respondServiceError maps ledger failures to RFC 7807 responses. Timing
// failures also set Retry-After.
func respondServiceError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	responder.RespondError(c, err)
}

func payloadMapper(err error) (apierrors.ProblemDetail, bool) {
	if errors.Is(err, fundhttpmapper.ErrInvalidPayload) {
		return apierrors.ErrBadRequest.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}
