// Package engine composes the connection and session layers into the
// controller the host application talks to.
//
// The controller exclusively owns the relay transport: no other
// component issues connect or disconnect calls. It exposes the public
// contract (Connect, RestoreByIdentifier, Disconnect, a status stream)
// and the lifecycle and deep-link entry points the host wires to its
// platform callbacks.
package engine
