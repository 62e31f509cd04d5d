package libp2pgossip

import "errors"

// ErrGroupNotJoined is returned by Shout when the local host has not
// joined group via Join.
var ErrGroupNotJoined = errors.New("libp2pgossip: group not joined")
