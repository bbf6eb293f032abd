//go:build !linux

package watermark

import "os"

func adviseSequential(*os.File) {}
