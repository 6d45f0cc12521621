package service

import "errors"

var (
	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized 请求没有携带用户身份
	ErrUnauthorized = errors.New("unauthorized")
)
