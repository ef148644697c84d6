// Package console implements the operator command line of a node.
package console

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.dedis.ch/hopdht/peer"
	"golang.org/x/xerrors"
)

// ErrExit is returned by RunLine on "exit".
var ErrExit = errors.New("exit")

const usage = `commands:
  peers                  list known peer ids
  store <key> <value...> store a value
  get <key>              retrieve a value
  mydata                 show the local store
  exit                   stop the console`

// Console is a thin command layer over a running node. It does not own the
// node's lifecycle.
type Console struct {
	peer   peer.Peer
	in     io.Reader
	out    io.Writer
	prompt string
}

// NewConsole returns a console reading commands from in and writing results
// to out.
func NewConsole(p peer.Peer, in io.Reader, out io.Writer) *Console {
	return &Console{
		peer:   p,
		in:     in,
		out:    out,
		prompt: fmt.Sprintf("Node %d >> ", p.GetIdentity().ID),
	}
}

// Run reads lines until EOF or "exit". Failed commands print an error line
// and the loop goes on.
func (c *Console) Run() error {
	sc := bufio.NewScanner(c.in)

	fmt.Fprint(c.out, c.prompt)
	for sc.Scan() {
		err := c.RunLine(sc.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}

		fmt.Fprint(c.out, c.prompt)
	}

	return sc.Err()
}

// RunLine executes a single command line.
func (c *Console) RunLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	var err error

	switch fields[0] {
	case "peers":
		err = c.peers()
	case "store":
		err = c.store(fields[1:])
	case "get":
		err = c.get(fields[1:])
	case "mydata":
		err = c.mydata()
	case "help":
		fmt.Fprintln(c.out, usage)
	case "exit":
		return ErrExit
	default:
		err = xerrors.Errorf("unknown command %q", fields[0])
	}

	if err != nil {
		fmt.Fprintf(c.out, "ERR %v\n", err)
	}

	return err
}

func (c *Console) peers() error {
	peers := c.peer.GetPeers()

	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = strconv.FormatInt(p.ID, 10)
	}

	fmt.Fprintf(c.out, "Known Peers: [%s]\n", strings.Join(ids, ", "))

	return nil
}

// store keeps the words after the key, joined by a space, as a JSON string.
func (c *Console) store(args []string) error {
	if len(args) < 2 {
		return xerrors.New("usage: store <key> <value...>")
	}

	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return xerrors.Errorf("invalid key %q", args[0])
	}

	value, err := json.Marshal(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	err = c.peer.Store(key, value)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Stored key %d\n", key)

	return nil
}

func (c *Console) get(args []string) error {
	if len(args) != 1 {
		return xerrors.New("usage: get <key>")
	}

	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return xerrors.Errorf("invalid key %q", args[0])
	}

	reply, err := c.peer.Retrieve(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Result: %s\n", reply)

	return nil
}

func (c *Console) mydata() error {
	data := c.peer.GetLocalData()

	keys := make([]int64, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	entries := make([]string, len(keys))
	for i, k := range keys {
		entries[i] = fmt.Sprintf("%d: %s", k, data[k])
	}

	fmt.Fprintf(c.out, "{%s}\n", strings.Join(entries, ", "))

	return nil
}
