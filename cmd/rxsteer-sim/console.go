package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/usnistgov/rxsteer/core/logging"
	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd/ethport"
	"github.com/usnistgov/rxsteer/pmd/rxq"
	"go.uber.org/multierr"
)

var errUsage = errors.New("bad arguments")

type consoleCommand struct {
	usage string
	nArgs int // minimum
	exec  func(c *console, args []string) error
}

var consoleCommands = map[string]consoleCommand{}

func defineConsoleCommand(name, usage string, nArgs int, exec func(c *console, args []string) error) {
	consoleCommands[name] = consoleCommand{usage: usage, nArgs: nArgs, exec: exec}
}

// console executes textual commands against an emulated port.
type console struct {
	dev         *simverbs.Device
	pool        *pktmbuf.Pool
	port        *ethport.Port
	descriptors int
	out         io.Writer
}

func newConsole(cfg simConfig, out io.Writer) (c *console, e error) {
	cfg.applyDefaults()
	c = &console{
		dev:         simverbs.New(cfg.Device),
		descriptors: cfg.Descriptors,
		out:         out,
	}
	if c.pool, e = pktmbuf.NewPool(cfg.Pool); e != nil {
		return nil, e
	}
	if c.port, e = ethport.New(c.dev, cfg.Port); e != nil {
		return nil, e
	}
	return c, nil
}

// Exec executes a command line.
// Empty lines and lines starting with '#' are ignored.
func (c *console) Exec(line string) (quit bool, e error) {
	args, e := shellquote.Split(line)
	if e != nil {
		return false, e
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return false, nil
	}
	if args[0] == "exit" || args[0] == "quit" {
		return true, nil
	}

	cmd, ok := consoleCommands[args[0]]
	if !ok {
		return false, fmt.Errorf("unknown command %q, try 'help'", args[0])
	}
	if len(args)-1 < cmd.nArgs {
		return false, fmt.Errorf("%w, usage: %s %s", errUsage, args[0], cmd.usage)
	}
	if e = cmd.exec(c, args[1:]); errors.Is(e, errUsage) {
		e = fmt.Errorf("%w, usage: %s %s", e, args[0], cmd.usage)
	}
	return false, e
}

// Close releases the port.
func (c *console) Close() error {
	return c.port.Close()
}

func (c *console) printJSON(value interface{}) error {
	j, e := json.MarshalIndent(value, "", "  ")
	if e != nil {
		return e
	}
	fmt.Fprintln(c.out, string(j))
	return nil
}

func consoleCompleter() readline.AutoCompleter {
	var items []readline.PrefixCompleterInterface
	for _, name := range consoleCommandNames() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}

func consoleCommandNames() (names []string) {
	for name := range consoleCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: expect on|off, got %q", errUsage, s)
}

func parseInt(s string) (int, error) {
	n, e := strconv.Atoi(s)
	if e != nil {
		return 0, fmt.Errorf("%w: %v", errUsage, e)
	}
	return n, nil
}

// parseOptions splits KEY=VALUE arguments.
func parseOptions(args []string, flags ...string) (opts map[string]string, e error) {
	opts = map[string]string{}
	for _, arg := range args {
		tokens := strings.SplitN(arg, "=", 2)
		if len(tokens) == 1 {
			tokens = append(tokens, "")
		}
		opts[tokens[0]] = tokens[1]
	}
	for key := range opts {
		found := false
		for _, flag := range flags {
			found = found || key == flag
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown option %q", errUsage, key)
		}
	}
	return opts, nil
}

func init() {
	defineConsoleCommand("help", "", 0, func(c *console, args []string) error {
		for _, name := range consoleCommandNames() {
			fmt.Fprintln(c.out, name, consoleCommands[name].usage)
		}
		fmt.Fprintln(c.out, "exit")
		return nil
	})

	defineConsoleCommand("start", "", 0, func(c *console, args []string) error {
		return c.port.Start()
	})

	defineConsoleCommand("stop", "", 0, func(c *console, args []string) error {
		return c.port.Stop()
	})

	defineConsoleCommand("rxq-setup", "IDX [DESC]", 1, func(c *console, args []string) error {
		idx, e := parseInt(args[0])
		if e != nil {
			return e
		}
		desc := c.descriptors
		if len(args) > 1 {
			if desc, e = parseInt(args[1]); e != nil {
				return e
			}
		}
		return c.port.RxQueueSetup(idx, rxq.Config{Descriptors: desc, Socket: -1, Pool: c.pool})
	})

	defineConsoleCommand("rxq-setup-all", "[DESC]", 0, func(c *console, args []string) error {
		desc := c.descriptors
		if len(args) > 0 {
			var e error
			if desc, e = parseInt(args[0]); e != nil {
				return e
			}
		}
		var errs []error
		for i, n := 0, c.port.Config().RxQueues; i < n; i++ {
			errs = append(errs, c.port.RxQueueSetup(i, rxq.Config{Descriptors: desc, Socket: -1, Pool: c.pool}))
		}
		return multierr.Combine(errs...)
	})

	defineConsoleCommand("rxq-release", "IDX", 1, func(c *console, args []string) error {
		idx, e := parseInt(args[0])
		if e != nil {
			return e
		}
		return c.port.RxQueueRelease(idx)
	})

	defineConsoleCommand("mac-add", "IDX ADDR", 2, func(c *console, args []string) error {
		idx, e := parseInt(args[0])
		if e != nil {
			return e
		}
		addr, e := macaddr.Parse(args[1])
		if e != nil {
			return fmt.Errorf("%w: %v", errUsage, e)
		}
		return c.port.MACAddrAdd(idx, addr)
	})

	defineConsoleCommand("mac-remove", "IDX", 1, func(c *console, args []string) error {
		idx, e := parseInt(args[0])
		if e != nil {
			return e
		}
		c.port.MACAddrRemove(idx)
		return nil
	})

	defineConsoleCommand("promisc", "on|off", 1, func(c *console, args []string) error {
		on, e := parseOnOff(args[0])
		if e != nil {
			return e
		}
		return c.port.SetPromiscuous(on)
	})

	defineConsoleCommand("allmulti", "on|off", 1, func(c *console, args []string) error {
		on, e := parseOnOff(args[0])
		if e != nil {
			return e
		}
		return c.port.SetAllMulticast(on)
	})

	defineConsoleCommand("vlan", "ID on|off", 2, func(c *console, args []string) error {
		id, e := parseInt(args[0])
		if e != nil {
			return e
		}
		on, e := parseOnOff(args[1])
		if e != nil {
			return e
		}
		return c.port.VLANFilterSet(id, on)
	})

	defineConsoleCommand("rxmode", "[jumbo] [maxlen=N] [csum]", 0, func(c *console, args []string) error {
		opts, e := parseOptions(args, "jumbo", "maxlen", "csum")
		if e != nil {
			return e
		}
		var mode rxq.RxMode
		_, mode.JumboFrame = opts["jumbo"]
		_, mode.HwIPChecksum = opts["csum"]
		if s, ok := opts["maxlen"]; ok {
			if mode.MaxRxPktLen, e = parseInt(s); e != nil {
				return e
			}
		}
		return c.port.SetRxMode(mode)
	})

	defineConsoleCommand("inject", "DST [vlan=N] [proto=P] [src=IP] [dst=IP] [sport=N] [dport=N]", 1, func(c *console, args []string) error {
		return c.inject(args)
	})

	defineConsoleCommand("show", "", 0, func(c *console, args []string) error {
		return c.printJSON(c.port.Info())
	})

	defineConsoleCommand("flows", "", 0, func(c *console, args []string) error {
		for _, fi := range c.dev.Flows() {
			fmt.Fprintf(c.out, "%d qp=%d %s\n", fi.Flow, fi.QP, fi.Attr)
		}
		return nil
	})

	defineConsoleCommand("log", "PKG LEVEL", 2, func(c *console, args []string) error {
		logging.SetLevel(args[0], args[1])
		return nil
	})
}

type injectResult struct {
	Delivered bool   `json:"delivered"`
	Flow      uint64 `json:"flow,omitempty"`
	QP        uint64 `json:"qp,omitempty"`
	Hash      string `json:"hash,omitempty"`
	RxQueue   int    `json:"rxq"`
}

func (c *console) inject(args []string) (e error) {
	spec := simverbs.FrameSpec{VLAN: -1}
	if spec.Dst, e = macaddr.Parse(args[0]); e != nil {
		return fmt.Errorf("%w: %v", errUsage, e)
	}

	opts, e := parseOptions(args[1:], "vlan", "proto", "src", "dst", "sport", "dport")
	if e != nil {
		return e
	}
	for key, value := range opts {
		switch key {
		case "vlan":
			spec.VLAN, e = parseInt(value)
		case "proto":
			spec.Proto = value
		case "src", "dst":
			ip := net.ParseIP(value)
			if ip == nil {
				return fmt.Errorf("%w: invalid IP %q", errUsage, value)
			}
			if key == "src" {
				spec.SrcIP = ip
			} else {
				spec.DstIP = ip
			}
		case "sport", "dport":
			var port int
			if port, e = parseInt(value); e == nil && (port <= 0 || port > 0xFFFF) {
				e = fmt.Errorf("%w: invalid port %q", errUsage, value)
			}
			if key == "sport" {
				spec.SrcPort = uint16(port)
			} else {
				spec.DstPort = uint16(port)
			}
		}
		if e != nil {
			return e
		}
	}

	frame, e := simverbs.BuildFrame(spec)
	if e != nil {
		return fmt.Errorf("%w: %v", errUsage, e)
	}

	res := injectResult{RxQueue: -1}
	dl, ok := c.dev.Steer(frame)
	if ok {
		res.Delivered = true
		res.Flow, res.QP = uint64(dl.Flow), uint64(dl.QP)
		res.Hash = fmt.Sprintf("%08x", dl.Hash)
		for i, n := 0, c.port.Config().RxQueues; i < n; i++ {
			if q := c.port.RxQueue(i); q != nil && q.WQ() == dl.WQ {
				res.RxQueue = i
			}
		}
	}
	j, _ := json.Marshal(res)
	fmt.Fprintln(c.out, string(j))
	return nil
}
