package cidutil

import "errors"

var errUnsupported = errors.New("cidutil: unsupported cid prefix")
