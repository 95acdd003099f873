// SPDX-License-Identifier: GPL-3.0-only

package crypto

import "errors"

type Crypto struct {
	ArgonTime    uint32
	ArgonMemory  uint32
	ArgonThreads uint8
	ArgonKeyLen  uint32
	ArgonSaltLen uint32
}

var ErrPasswordMismatch = errors.New("password verification failed")

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenPurpose = errors.New("token purpose mismatch")
)

const (
	PurposeConfirm = "confirm"
	PurposeReset   = "reset"
)
