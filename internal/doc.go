// Package internal holds helpers private to the lireddit module.
//
// Sub-packages:
//
//   - audit: async audit event dispatch
//   - flows: the account and password-reset flows behind Engine
//   - limiters: throttling policies
//   - rate: Redis fixed-window counters
//   - stores: single-use Redis records (reset tokens)
package internal
