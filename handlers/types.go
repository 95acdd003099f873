// SPDX-License-Identifier: GPL-3.0-only

package handlers

import "time"

// swagger:model RegisterRequest
type RegisterRequest struct {
	// User's email address
	Email string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	// User's password
	Password string `json:"password" validate:"required" example:"MySecretPassword@123"`
	// Must repeat password
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password" example:"MySecretPassword@123"`
}

// swagger:model RegisterResponse
type RegisterResponse struct {
	Message string       `json:"message" example:"Registration successful. Please check your email to confirm your account."`
	User    UserResource `json:"user"`
	// Only returned when the server runs in debug mode
	ConfirmURL string `json:"confirm_url,omitempty"`
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"MySecretPassword@123"`
}

// swagger:model ForgotPasswordRequest
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

// swagger:model ForgotPasswordResponse
type ForgotPasswordResponse struct {
	Message string `json:"message"`
	// Only returned when the server runs in debug mode
	ResetURL string `json:"reset_url,omitempty"`
}

// swagger:model ResetPasswordRequest
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

// swagger:model DeleteAccountRequest
type DeleteAccountRequest struct {
	// Must be the literal string DELETE
	Confirm string `json:"confirm" validate:"required" example:"DELETE"`
}

// swagger:model BillingProfileRequest
type BillingProfileRequest struct {
	FullName   *string `json:"full_name" validate:"omitempty,max=255"`
	Company    *string `json:"company" validate:"omitempty,max=255"`
	Address1   *string `json:"address1" validate:"omitempty,max=255"`
	Address2   *string `json:"address2" validate:"omitempty,max=255"`
	City       *string `json:"city" validate:"omitempty,max=128"`
	State      *string `json:"state" validate:"omitempty,max=128"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=64"`
	Country    *string `json:"country" validate:"omitempty,country" example:"DE"`
	TaxID      *string `json:"tax_id" validate:"omitempty,max=64"`
}

// swagger:model SubscribeRequest
type SubscribeRequest struct {
	PlanID uint `json:"plan_id" validate:"required" example:"2"`
}

// swagger:model CreateAPIKeyRequest
type CreateAPIKeyRequest struct {
	// Optional label, defaults to "API Key N"
	Name      string     `json:"name" validate:"max=100" example:"CI pipeline"`
	ExpiresAt *time.Time `json:"expires_at" example:"2030-01-01T00:00:00Z"`
}

// swagger:model AdminCreateUserRequest
type AdminCreateUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=user admin"`
	Language    string `json:"language" validate:"omitempty,oneof=en de"`
	IsActive    *bool  `json:"is_active"`
	IsConfirmed bool   `json:"is_confirmed"`
}

// swagger:model AdminUpdateUserRequest
type AdminUpdateUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Role        string `json:"role" validate:"required,oneof=user admin"`
	Language    string `json:"language" validate:"required,oneof=en de"`
	IsActive    *bool  `json:"is_active" validate:"required"`
	IsConfirmed *bool  `json:"is_confirmed" validate:"required"`
	// Leave empty to keep the current password
	NewPassword string `json:"new_password"`
}

// swagger:model PlanRequest
type PlanRequest struct {
	Name            string   `json:"name" validate:"required,max=100" example:"Pro"`
	Description     *string  `json:"description"`
	Features        []string `json:"features" validate:"max=5,dive,required,max=255"`
	Price           string   `json:"price" validate:"required" example:"19.99"`
	Currency        string   `json:"currency" validate:"omitempty,len=3,alpha" example:"USD"`
	BillingPeriod   string   `json:"billing_period" validate:"omitempty,oneof=monthly yearly lifetime" example:"monthly"`
	StripePriceID   *string  `json:"stripe_price_id" validate:"omitempty,max=255"`
	StripeProductID *string  `json:"stripe_product_id" validate:"omitempty,max=255"`
	IsActive        *bool    `json:"is_active"`
	IsFeatured      bool     `json:"is_featured"`
	SortOrder       int      `json:"sort_order"`
}

// swagger:model APICreateUserRequest
type APICreateUserRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	// A random password is generated when omitted
	Password string `json:"password"`
}

// swagger:model GenericResponse
type GenericResponse struct {
	Message string `json:"message" example:"Operation successful"`
}

// swagger:model UserResource
type UserResource struct {
	ID          uint      `json:"id" example:"1"`
	Email       string    `json:"email" example:"user@example.com"`
	Role        string    `json:"role" example:"user"`
	Language    string    `json:"language" example:"en"`
	Plan        string    `json:"plan" example:"Free"`
	IsActive    bool      `json:"is_active" example:"true"`
	IsConfirmed bool      `json:"is_confirmed" example:"true"`
	CreatedAt   time.Time `json:"created_at"`
}

// swagger:model APIKeyResource
type APIKeyResource struct {
	ID         uint       `json:"id" example:"1"`
	Name       string     `json:"name" example:"API Key 1"`
	KeyPrefix  string     `json:"key_prefix" example:"sk_live_AbCd"`
	MaskedKey  string     `json:"masked_key" example:"sk_live_AbCd********************************"`
	IsActive   bool       `json:"is_active" example:"true"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// swagger:model APIKeySecretResponse
type APIKeySecretResponse struct {
	Message string         `json:"message"`
	APIKey  APIKeyResource `json:"api_key"`
	// Plaintext key, shown only once
	Key string `json:"key" example:"sk_live_..."`
}

// swagger:model APIKeyListResponse
type APIKeyListResponse struct {
	Data  []APIKeyResource `json:"data"`
	Quota int              `json:"quota" example:"2"`
	// Number of active keys
	Active int `json:"active" example:"1"`
}

// swagger:model PlanResource
type PlanResource struct {
	ID              uint     `json:"id"`
	Name            string   `json:"name"`
	Description     *string  `json:"description"`
	Features        []string `json:"features"`
	Price           string   `json:"price" example:"19.99"`
	Currency        string   `json:"currency" example:"USD"`
	BillingPeriod   string   `json:"billing_period" example:"monthly"`
	FormattedPrice  string   `json:"formatted_price" example:"USD 19.99/monthly"`
	StripePriceID   *string  `json:"stripe_price_id,omitempty"`
	StripeProductID *string  `json:"stripe_product_id,omitempty"`
	IsActive        bool     `json:"is_active"`
	IsFeatured      bool     `json:"is_featured"`
	SortOrder       int      `json:"sort_order"`
	// Set when the caller is authenticated
	IsCurrent bool `json:"is_current,omitempty"`
}

// swagger:model BillingProfileResource
type BillingProfileResource struct {
	FullName   *string   `json:"full_name"`
	Company    *string   `json:"company"`
	Address1   *string   `json:"address1"`
	Address2   *string   `json:"address2"`
	City       *string   `json:"city"`
	State      *string   `json:"state"`
	PostalCode *string   `json:"postal_code"`
	Country    *string   `json:"country"`
	TaxID      *string   `json:"tax_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// swagger:model AccountOverviewResponse
type AccountOverviewResponse struct {
	User             UserResource            `json:"user"`
	Billing          *BillingProfileResource `json:"billing"`
	Plan             *PlanResource           `json:"plan"`
	PlanSubscribedAt *time.Time              `json:"plan_subscribed_at"`
}

// swagger:model PaginationDetails
type PaginationDetails struct {
	Page         int   `json:"page" example:"1"`
	PageSize     int   `json:"page_size" example:"20"`
	TotalRecords int64 `json:"total_records" example:"42"`
	TotalPages   int   `json:"total_pages" example:"3"`
}

// swagger:model UserListResponse
type UserListResponse struct {
	Data       []UserResource    `json:"data"`
	Pagination PaginationDetails `json:"pagination"`
}

// swagger:model EventLogResource
type EventLogResource struct {
	EID         string    `json:"eid"`
	Category    string    `json:"category" example:"AUTH"`
	Status      string    `json:"status" example:"SUCCESS"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// swagger:model EventLogListResponse
type EventLogListResponse struct {
	Data       []EventLogResource `json:"data"`
	Pagination PaginationDetails  `json:"pagination"`
}
