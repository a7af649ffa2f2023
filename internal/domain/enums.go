package domain

import (
	"fmt"
	"strings"

	"beanstore/internal/apperr"
)

// The enum types below are closed: values only enter the system through the
// Parse* functions, and every switch over them lists all members.

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusPickedUp   OrderStatus = "picked_up"
	StatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusPickedUp, StatusCancelled}

func OrderStatuses() []OrderStatus { return append([]OrderStatus(nil), orderStatuses...) }

func ParseOrderStatus(s string) (OrderStatus, error) {
	return parseEnum(s, orderStatuses, "訂單狀態")
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusPickedUp, StatusCancelled:
		return true
	case StatusPending, StatusProcessing, StatusCompleted:
		return false
	}
	return false
}

// HoldsStock reports whether an order in this status keeps its items reserved.
func (s OrderStatus) HoldsStock() bool {
	switch s {
	case StatusCancelled:
		return false
	case StatusPending, StatusProcessing, StatusCompleted, StatusPickedUp:
		return true
	}
	return false
}

type PickupMethod string

const (
	PickupInStore          PickupMethod = "in_store"
	PickupHomeDelivery     PickupMethod = "home_delivery"
	PickupConvenienceStore PickupMethod = "convenience_store"
)

var pickupMethods = []PickupMethod{PickupInStore, PickupHomeDelivery, PickupConvenienceStore}

func PickupMethods() []PickupMethod { return append([]PickupMethod(nil), pickupMethods...) }

func ParsePickupMethod(s string) (PickupMethod, error) {
	return parseEnum(s, pickupMethods, "取貨方式")
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentLinePay      PaymentMethod = "line_pay"
)

var paymentMethods = []PaymentMethod{PaymentCash, PaymentBankTransfer, PaymentLinePay}

func PaymentMethods() []PaymentMethod { return append([]PaymentMethod(nil), paymentMethods...) }

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	return parseEnum(s, paymentMethods, "付款方式")
}

type GrindOption string

const (
	GrindNone     GrindOption = "none"
	GrindHandDrip GrindOption = "hand_drip"
	GrindEspresso GrindOption = "espresso"
)

var grindOptions = []GrindOption{GrindNone, GrindHandDrip, GrindEspresso}

func GrindOptions() []GrindOption { return append([]GrindOption(nil), grindOptions...) }

// ParseGrindOption treats an empty string as GrindNone.
func ParseGrindOption(s string) (GrindOption, error) {
	if strings.TrimSpace(s) == "" {
		return GrindNone, nil
	}
	return parseEnum(s, grindOptions, "研磨方式")
}

type AuthProvider string

const (
	ProviderEmail    AuthProvider = "email"
	ProviderOTP      AuthProvider = "otp"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
	ProviderLine     AuthProvider = "line"
)

var authProviders = []AuthProvider{ProviderEmail, ProviderOTP, ProviderGoogle, ProviderFacebook, ProviderLine}

func ParseAuthProvider(s string) (AuthProvider, error) {
	return parseEnum(s, authProviders, "登入方式")
}

// OAuth reports whether the provider is an external identity link.
func (p AuthProvider) OAuth() bool {
	switch p {
	case ProviderGoogle, ProviderFacebook, ProviderLine:
		return true
	case ProviderEmail, ProviderOTP:
		return false
	}
	return false
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func parseEnum[T ~string](s string, all []T, what string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	for _, x := range all {
		if x == v {
			return v, nil
		}
	}
	var zero T
	return zero, apperr.Validation(fmt.Sprintf("不支援的%s: %q", what, s))
}
