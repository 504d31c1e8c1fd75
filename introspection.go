// Package introspection is a runtime introspection agent ("vasco") for a live
// graphical host process.
//
// The agent runs three cooperating pieces inside the host:
//  1. Channel Listener - accepts one command per connection on <dir>/<exe>-IpcPipe
//  2. Owner-Context Bridge - posts each command to the host's owner loop, in accept order
//  3. Lifecycle + Render Tracking - object creation times and first-frame latency per window
//
// Architecture: the host owns the toolkit and the owner loop; the agent only
// calls into them. Commands are a closed set (see package command).
package introspection
