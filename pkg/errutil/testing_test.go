// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/domainhive/domainhive/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("AUTH_TOKEN_EXPIRED").Errorf("token expired")
	errutil.AssertErrorCode(t, err, "AUTH_TOKEN_EXPIRED")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("user_id", "01J0000000000000000000000").Errorf("user not found")
	errutil.AssertErrorContext(t, err, "user_id", "01J0000000000000000000000")
}
