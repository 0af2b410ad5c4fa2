package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/mirror520/pullsub"
	"github.com/mirror520/pullsub/model"
	"github.com/mirror520/pullsub/sample"
)

type SampleResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Timestamp string    `json:"timestamp"`
	Time      time.Time `json:"time"`
}

func NewSampleResponse(s *sample.Sample) *SampleResponse {
	return &SampleResponse{
		Key:       s.Key.String(),
		Value:     string(s.Payload),
		Timestamp: s.Timestamp.String(),
		Time:      s.Time(),
	}
}

type SubscribeRequest struct {
	KeyExpr     string `json:"keyExpr" binding:"required"`
	Reliability string `json:"reliability"`
}

func PutHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, result)
			return
		}

		req := pullsub.PutRequest{
			Key:     ctx.Param("key"),
			Payload: payload,
		}

		resp, err := endpoint(ctx.Request.Context(), req)
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(StatusCode(err), result)
			return
		}

		var data any
		if s, ok := resp.(*sample.Sample); ok && s != nil {
			data = NewSampleResponse(s)
		}

		result := model.SuccessResult("sample put", data)
		ctx.JSON(http.StatusOK, result)
	}
}

func SubscribeHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var body SubscribeRequest
		if err := ctx.ShouldBindJSON(&body); err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, result)
			return
		}

		reliability, err := pullsub.ParseReliability(body.Reliability)
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, result)
			return
		}

		req := pullsub.SubscribeRequest{
			KeyExpr: body.KeyExpr,
			Info: pullsub.SubInfo{
				Mode:        pullsub.Pull,
				Reliability: reliability,
			},
		}

		resp, err := endpoint(ctx.Request.Context(), req)
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(StatusCode(err), result)
			return
		}

		result := model.SuccessResult("subscription declared", resp)
		ctx.JSON(http.StatusCreated, result)
	}
}

// PullHandler answers 204 when the subscription has nothing buffered.
func PullHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, err := pullsub.ParseSubscriptionID(ctx.Param("id"))
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, result)
			return
		}

		resp, err := endpoint(ctx.Request.Context(), pullsub.PullRequest{ID: id})
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(StatusCode(err), result)
			return
		}

		s, _ := resp.(*sample.Sample)
		if s == nil {
			ctx.Status(http.StatusNoContent)
			return
		}

		result := model.SuccessResult("sample pulled", NewSampleResponse(s))
		ctx.JSON(http.StatusOK, result)
	}
}

func CloseSubscriptionHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, err := pullsub.ParseSubscriptionID(ctx.Param("id"))
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(http.StatusBadRequest, result)
			return
		}

		_, err = endpoint(ctx.Request.Context(), pullsub.CloseSubscriptionRequest{ID: id})
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(StatusCode(err), result)
			return
		}

		result := model.SuccessResult("subscription closed", nil)
		ctx.JSON(http.StatusOK, result)
	}
}

func QueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := pullsub.QueryRequest{
			Selector: ctx.Param("selector"),
		}

		resp, err := endpoint(ctx.Request.Context(), req)
		if err != nil {
			result := model.FailureResult(err)
			ctx.AbortWithStatusJSON(StatusCode(err), result)
			return
		}

		samples, _ := resp.([]*sample.Sample)

		data := make([]*SampleResponse, len(samples))
		for i, s := range samples {
			data[i] = NewSampleResponse(s)
		}

		result := model.SuccessResult("storage queried", data)
		ctx.JSON(http.StatusOK, result)
	}
}

func CheckHealthHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "ok")
}

func StatusCode(err error) int {
	switch {
	case errors.Is(err, pullsub.ErrMalformedKeyExpr),
		errors.Is(err, pullsub.ErrInvalidPattern),
		errors.Is(err, pullsub.ErrNonConcreteKey),
		errors.Is(err, pullsub.ErrInvalidSubInfo),
		errors.Is(err, pullsub.ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, pullsub.ErrUnknownSubscription):
		return http.StatusNotFound

	case errors.Is(err, pullsub.ErrSessionClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
