package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	//同じidempotency keyの注文が既にある（ラッチの失敗検知用）
	ErrDuplicateOrder = errors.New("duplicate order")
)
