// Package state tracks the single pending conversational action per user.
// A pending action is armed by a menu callback and consumed by the user's
// next text message.
package state
