package model

import "time"

type ResultStatus string

const (
	SUCCESS ResultStatus = "success"
	FAILURE ResultStatus = "failure"
)

// Result is the envelope of every gateway response.
type Result struct {
	Status ResultStatus `json:"status"`
	Msg    string       `json:"msg"`
	Data   any          `json:"data,omitempty"`
	Time   time.Time    `json:"time"`
}

func SuccessResult(msg string, data any) *Result {
	return &Result{
		Status: SUCCESS,
		Msg:    msg,
		Data:   data,
		Time:   time.Now().UTC(),
	}
}

func FailureResult(err error) *Result {
	return &Result{
		Status: FAILURE,
		Msg:    err.Error(),
		Time:   time.Now().UTC(),
	}
}
