package ws

import "errors"

var errUnknownCommand = errors.New("unknown message type")
