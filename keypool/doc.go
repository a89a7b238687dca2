// Package keypool manages rotating pools of provider credentials.
//
// Each provider owns an ordered set of credentials with health state
// (active, cooling down, exhausted). Acquire hands out the least recently
// used active credential; Report feeds attempt outcomes back so the pool
// can cool down rate limited keys, retire persistently failing ones and
// revive keys whose cooldown deadline has elapsed.
//
// The Manager is safe for concurrent use; acquire and report are atomic
// with respect to a credential's state so concurrent executions can never
// select a cooling credential or double-penalize one failure.
package keypool
