package sender

import "errors"

var ErrUnresolvedPane = errors.New("sender: pane has no known multiplexer target")
