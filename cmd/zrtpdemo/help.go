package main

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

var flagHelp bool

func init() {
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `zrtpdemo: two-endpoint ZRTP handshake + SRTP loopback demo

Runs two in-process ZRTP endpoints ("alice" and "bob") over a pair of
loopback UDP sockets, drives both through Hello...Commit...DHPart...
Confirm to Secure, and prints the negotiated SAS from each side.

Usage: zrtpdemo [OPTION]...

  -h, --help    Print this message and exit

Report bugs against this module's issue tracker.`

func help() {
	fmt.Println(helpString)
}
