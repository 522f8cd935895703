// Package rate implements fixed-window counters on Redis.
//
// A window starts on the first INCR of a key, which also sets its EXPIRE;
// the key then counts hits until it expires. Policies (which keys, which
// limits) live in internal/limiters.
package rate
