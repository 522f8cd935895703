// Package flows holds the account flows behind Engine: register, login,
// logout, forgot-password and change-password.
//
// Each RunX function takes a Deps struct of function fields and returns
// plain results. The Engine builds the Deps once from its stores, hasher,
// limiters, metrics and audit dispatcher, so a flow can be exercised with
// in-memory fakes and never owns a resource itself.
//
// The package does not import the root lireddit package.
package flows
