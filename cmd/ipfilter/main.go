// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command ipfilter drives a prefix table with a line protocol on
// stdin:
//
//	add 10.0.0.0/8
//	del 10.0.0.0/8
//	check 10.1.2.3
//	list
//
// check prints the Table.Lookup result to stdout, -1 for no match.
// list prints every stored key with its mask lengths. Mutations are
// logged; with -strict the first failed command stops the run.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ipcontainer "github.com/mmalicki2/IpContainer"
	"github.com/mmalicki2/IpContainer/internal/logutil"
)

var (
	strict = flag.Bool("strict", false, "stop on the first failed command")
	logLvl = flag.String("loglevel", "info", "zap log level")
)

func main() {
	flag.Parse()

	lvl, err := zapcore.ParseLevel(*logLvl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logutil.InitLogger(lvl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logutil.BgLogger()

	tbl := ipcontainer.New()
	defer tbl.Close()

	scanner := bufio.NewScanner(os.Stdin)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := run(tbl, line); err != nil {
			log.Error("command failed",
				zap.Int("line", lineno),
				zap.String("input", line),
				zap.Error(err))
			if *strict {
				os.Exit(1)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("read stdin", zap.Error(err))
		os.Exit(1)
	}
}

func run(tbl *ipcontainer.Table, line string) error {
	log := logutil.BgLogger()

	op, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch op {
	case "add":
		pfx, err := netip.ParsePrefix(arg)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := tbl.InsertPrefix(pfx); err != nil {
			return err
		}
		log.Info("added", zap.Stringer("prefix", pfx), zap.Int("size", tbl.Size()))

	case "del":
		pfx, err := netip.ParsePrefix(arg)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := tbl.DeletePrefix(pfx); err != nil {
			return err
		}
		log.Info("removed", zap.Stringer("prefix", pfx), zap.Int("size", tbl.Size()))

	case "check":
		ip, err := netip.ParseAddr(arg)
		if err != nil {
			return errors.WithStack(err)
		}
		fmt.Println(tbl.Lookup(ip))

	case "list":
		fmt.Print(tbl)

	default:
		return errors.Errorf("unknown command: %q", op)
	}
	return nil
}
