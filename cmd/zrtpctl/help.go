package main

import (
	"fmt"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagCachePath    string
	flagCacheKeyHex  string
	flagLocalZID     string
	flagPeerZID      string
	flagSetName      string
	flagVerify       bool
	flagUnverify     bool
	flagReset        bool
	flagHelp         bool
)

func init() {
	flag.StringVarP(&flagCachePath, "cache", "c", "", "Path to the file-backed cache")
	flag.StringVarP(&flagCacheKeyHex, "cache-key", "k", "", "Hex-encoded cache encryption key")
	flag.StringVarP(&flagLocalZID, "local-zid", "l", "", "Local ZID, 24 hex chars")
	flag.StringVarP(&flagPeerZID, "peer-zid", "p", "", "Peer ZID, 24 hex chars")
	flag.StringVarP(&flagSetName, "set-name", "n", "", "Set the peer's friendly name and exit")
	flag.BoolVarP(&flagVerify, "verify", "", false, "Mark this ZID pair's SAS as verified")
	flag.BoolVarP(&flagUnverify, "unverify", "", false, "Clear this ZID pair's SAS-verified flag")
	flag.BoolVarP(&flagReset, "reset", "", false, "Reset this ZID pair's secure-since time")
	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
}

const helpString = `zrtpctl: inspect and manage a ZRTP retained-secret cache

Usage: zrtpctl --cache=FILE --peer-zid=HEX [OPTION]...

  -c, --cache=FILE        Path to the file-backed cache (required)
  -k, --cache-key=HEX      Hex-encoded cache encryption key
  -l, --local-zid=HEX      Local ZID, 24 hex chars
  -p, --peer-zid=HEX       Peer ZID, 24 hex chars
  -n, --set-name=NAME     Set the peer's friendly name and exit
      --verify            Mark this ZID pair's SAS as verified
      --unverify          Clear this ZID pair's SAS-verified flag
      --reset             Reset this ZID pair's secure-since time

  -h, --help              Print this message and exit

With no action flag, prints the cached record for the given ZID pair.`

func help() {
	color.New(color.FgCyan).Println("zrtpctl")
	fmt.Println(helpString)
}
