// Command zrtpctl is an operator tool for inspecting and managing a
// file-backed ZRTP Cache: looking up what's retained for a ZID pair,
// flipping the SAS-verified flag, setting a friendly name, or resetting
// a pair's secure-since time. Compare the teacher's
// cmd/alohartcd, which played the same "one small pflag-driven binary
// over the engine's public surface" role for a device daemon.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/lanikai/zrtp"
)

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}

	if flagCachePath == "" {
		fmt.Fprintln(os.Stderr, "zrtpctl: --cache is required")
		os.Exit(1)
	}

	localZID, err := parseZID(flagLocalZID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zrtpctl: --local-zid: %v\n", err)
		os.Exit(1)
	}
	peerZID, err := parseZID(flagPeerZID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zrtpctl: --peer-zid: %v\n", err)
		os.Exit(1)
	}

	var cacheKey []byte
	if flagCacheKeyHex != "" {
		cacheKey, err = hex.DecodeString(flagCacheKeyHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "zrtpctl: --cache-key: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := zrtp.NewFileCache(flagCachePath, cacheKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zrtpctl: opening cache: %v\n", err)
		os.Exit(1)
	}

	switch {
	case flagSetName != "":
		err = c.SetName(localZID, peerZID, flagSetName)
	case flagVerify:
		err = c.SetVerified(localZID, peerZID, true)
	case flagUnverify:
		err = c.SetVerified(localZID, peerZID, false)
	case flagReset:
		err = c.ResetSince(localZID, peerZID)
	default:
		err = printRecord(c, localZID, peerZID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "zrtpctl: %v\n", err)
		os.Exit(1)
	}
}

func printRecord(c zrtp.Cache, local, peer zrtp.ZID) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	verified, err := c.GetVerified(local, peer)
	if err != nil && err != zrtp.ErrCacheMiss {
		return err
	}
	name, _ := c.GetName(local, peer)
	counter, _ := c.GetPresharedCounter(local, peer)

	fmt.Printf("peer:      %s\n", peer)
	if name != "" {
		fmt.Printf("name:      %s\n", name)
	}
	if verified {
		green.Printf("verified:  yes\n")
	} else {
		red.Printf("verified:  no\n")
	}
	fmt.Printf("preshared uses since rotation: %d\n", counter)

	current, err := c.Get(local, peer, zrtp.SecretCurrent)
	if err == nil && current.IsCached {
		fmt.Println("retained secret: present (current)")
	} else {
		fmt.Println("retained secret: none")
	}
	return nil
}

func parseZID(s string) (zrtp.ZID, error) {
	var z zrtp.ZID
	if s == "" {
		return z, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return z, err
	}
	if len(b) != 12 {
		return z, fmt.Errorf("want 24 hex chars (12 bytes), got %d bytes", len(b))
	}
	copy(z[:], b)
	return z, nil
}
