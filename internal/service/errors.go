package service

import (
	"errors"
	"fmt"
)

// 校验类错误，均可用 errors.Is(err, ErrValidation) 统一识别
var (
	ErrValidation           = errors.New("validation failed")
	ErrCartEmpty            = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrTooManyItems         = fmt.Errorf("%w: too many items", ErrValidation)
	ErrBuyerContactInvalid  = fmt.Errorf("%w: buyer contact incomplete", ErrValidation)
	ErrAddressIncomplete    = fmt.Errorf("%w: shipping address incomplete", ErrValidation)
	ErrInvalidOrderItem     = fmt.Errorf("%w: invalid order item", ErrValidation)
	ErrProductNotAvailable  = fmt.Errorf("%w: product not available", ErrValidation)
	ErrPaymentMethodInvalid = fmt.Errorf("%w: unknown payment method", ErrValidation)
	ErrOrderFieldImmutable  = fmt.Errorf("%w: order field is immutable", ErrValidation)
	ErrOrderStatusInvalid   = fmt.Errorf("%w: order status invalid", ErrValidation)
	ErrStatusValueInvalid   = fmt.Errorf("%w: status value invalid", ErrValidation)
)

// 订单与结算链路错误
var (
	ErrAllocationFailed            = errors.New("order number allocation failed")
	ErrOrderNotFound               = errors.New("order not found")
	ErrOrderFetchFailed            = errors.New("order fetch failed")
	ErrOrderCreateFailed           = errors.New("order create failed")
	ErrOrderUpdateFailed           = errors.New("order update failed")
	ErrOrderNotSettled             = errors.New("order payment not settled")
	ErrPaymentTransitionRejected   = errors.New("payment transition rejected")
	ErrPaymentCallbackRejected     = errors.New("payment callback rejected")
	ErrPaymentSignatureInvalid     = fmt.Errorf("%w: signature invalid", ErrPaymentCallbackRejected)
	ErrPaymentCallbackUnknownOrder = fmt.Errorf("%w: unknown order", ErrPaymentCallbackRejected)
	ErrPaymentAmountMismatch       = fmt.Errorf("%w: amount mismatch", ErrPaymentCallbackRejected)
	ErrPaymentCallbackMalformed    = fmt.Errorf("%w: malformed payload", ErrPaymentCallbackRejected)
	ErrDispatchFailed              = errors.New("vendor dispatch failed")
	ErrCompensationFailed          = errors.New("profile compensation failed")
	ErrSubOrderNotFound            = errors.New("sub order not found")
	ErrSubOrderStatusTransition    = errors.New("sub order status transition not allowed")
	ErrSubOrderForbidden           = errors.New("sub order belongs to another vendor")
)
