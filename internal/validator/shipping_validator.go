package validator

import (
	"regexp"
	"strings"

	"app/internal/usecase"
)

type shippingValidator struct{}

// Usecaseは interface を依存注入
func NewShippingValidator() usecase.ShippingValidator {
	return &shippingValidator{}
}

var phoneDigits = regexp.MustCompile(`^[0-9]+$`)

// 配送先フォームの検証。フィールド名→メッセージのmapを返す。
// 1つでも落ちたらフォーム全体を弾く（部分保存しない）。
func (v *shippingValidator) ValidateShipping(in usecase.ShippingInput) map[string]string {
	fields := map[string]string{}

	if strings.TrimSpace(in.FullName) == "" {
		fields["full_name"] = "full name is required"
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		fields["email"] = "email is required"
	} else if !isEmailLike(email) {
		fields["email"] = "invalid email"
	}

	phone := strings.ReplaceAll(strings.TrimSpace(in.Phone), "-", "")
	phone = strings.ReplaceAll(phone, " ", "")
	if phone == "" {
		fields["phone"] = "phone is required"
	} else if !phoneDigits.MatchString(strings.TrimPrefix(phone, "+")) || len(strings.TrimPrefix(phone, "+")) < 10 {
		fields["phone"] = "invalid phone"
	}

	if len(strings.TrimSpace(in.Address)) < 5 {
		fields["address"] = "address is required"
	}
	if strings.TrimSpace(in.City) == "" {
		fields["city"] = "city is required"
	}
	if strings.TrimSpace(in.State) == "" {
		fields["state"] = "state is required"
	}
	if strings.TrimSpace(in.PostalCode) == "" {
		fields["postal_code"] = "postal code is required"
	}
	if strings.TrimSpace(in.Country) == "" {
		fields["country"] = "country is required"
	}

	return fields
}
