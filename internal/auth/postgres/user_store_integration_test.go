// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

//go:build integration

package postgres_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/auth/postgres"
)

var _ = Describe("UserStore", func() {
	var (
		ctx    context.Context
		module *auth.Module
		users  *postgres.UserStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		_, err := testPool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())

		users = postgres.NewUserStore(testPool)
		module, err = auth.NewModule(auth.Config{SecretKey: "integration"}, auth.WithStore(users))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(module.Close)
	})

	It("registers, logs in and verifies", func() {
		registered, err := module.Register(ctx, "alice", "a@x.io", "pw1", "admin", "user")
		Expect(err).NotTo(HaveOccurred())

		result, err := module.Login(ctx, "alice", "pw1")
		Expect(err).NotTo(HaveOccurred())

		user, err := module.VerifyAuth(ctx, result.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(user).NotTo(BeNil())
		Expect(user.ID).To(Equal(registered.ID))
		Expect(user.Roles).To(Equal([]string{"admin", "user"}))
	})

	It("rejects duplicate usernames and emails", func() {
		_, err := module.Register(ctx, "alice", "a@x.io", "pw1")
		Expect(err).NotTo(HaveOccurred())

		_, err = module.Register(ctx, "alice", "other@x.io", "pw1")
		Expect(auth.IsDuplicateUser(err)).To(BeTrue())

		_, err = module.Register(ctx, "other", "a@x.io", "pw1")
		Expect(auth.IsDuplicateUser(err)).To(BeTrue())
	})

	It("round-trips metadata through JSONB", func() {
		registered, err := module.Register(ctx, "alice", "a@x.io", "pw1")
		Expect(err).NotTo(HaveOccurred())

		_, err = module.UpdateUser(ctx, registered.ID, auth.UserUpdate{
			Metadata: map[string]any{"theme": "dark", "logins": float64(3)},
		})
		Expect(err).NotTo(HaveOccurred())

		stored, err := users.GetByID(ctx, registered.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Metadata).To(HaveKeyWithValue("theme", "dark"))
		Expect(stored.Metadata).To(HaveKeyWithValue("logins", float64(3)))
	})

	It("deletes users and their credentials", func() {
		registered, err := module.Register(ctx, "alice", "a@x.io", "pw1")
		Expect(err).NotTo(HaveOccurred())

		Expect(module.DeleteUser(ctx, registered.ID)).To(Succeed())
		Expect(module.DeleteUser(ctx, registered.ID)).To(Succeed())

		_, err = users.PasswordHash(ctx, registered.ID)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("lists users in creation order", func() {
		_, err := module.Register(ctx, "alice", "a@x.io", "pw1")
		Expect(err).NotTo(HaveOccurred())
		_, err = module.Register(ctx, "bob", "b@x.io", "pw2")
		Expect(err).NotTo(HaveOccurred())

		all, err := users.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
		Expect(all[0].Username).To(Equal("alice"))
	})
})
