package netio

import "time"

// zeroTime clears a previously set I/O deadline (net.Conn convention:
// the zero Time disables the deadline).
var zeroTime time.Time
