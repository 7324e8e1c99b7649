package extract

import "errors"

var ErrNoStructurer = errors.New("no text structurer available")
