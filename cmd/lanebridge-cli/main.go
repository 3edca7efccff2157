package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"lanebridge/cmd/internal/passphrase"
	"lanebridge/core/types"
	"lanebridge/crypto"
	"lanebridge/native/identity"
)

const (
	defaultRPCEndpoint = "http://127.0.0.1:8545"
	rpcEndpointEnv     = "LANEBRIDGE_RPC_URL"
	operatorTokenEnv   = "LANEBRIDGE_OPERATOR_TOKEN"
	keyPassEnv         = "LANEBRIDGE_KEY_PASS"
)

type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	endpoint string
	chainID  uint64
	secrets  func() (string, error)
	client   func(token string) *rpcClient
}

func main() {
	c := &cli{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		secrets: passphrase.NewSource(keyPassEnv, "Enter keystore passphrase: ").Get,
	}
	os.Exit(c.run(os.Args[1:]))
}

func (c *cli) usage() {
	fmt.Fprintln(c.stderr, `Usage: lanebridge-cli [--rpc URL] [--chain-id N] <command> [args]

Commands:
  generate-key <keystore>                       create an encrypted key
  address <keystore>                            print the key's account
  derive [--chain ID] (--root | --account HEX)  derive the local account of a remote sender
  balance <account>                             query balance and nonce
  height                                        query the current block height
  send <keystore> <module> <method> [json]      sign and submit a call
  root <module> <method> [json]                 submit a root call (needs LANEBRIDGE_OPERATOR_TOKEN)
  receipt <hash>                                fetch a transaction receipt`)
}

func (c *cli) rpc(token string) *rpcClient {
	if c.client != nil {
		return c.client(token)
	}
	return newRPCClient(c.endpoint, token)
}

func (c *cli) run(args []string) int {
	global := flag.NewFlagSet("lanebridge-cli", flag.ContinueOnError)
	global.SetOutput(c.stderr)
	endpoint := os.Getenv(rpcEndpointEnv)
	if endpoint == "" {
		endpoint = defaultRPCEndpoint
	}
	global.StringVar(&c.endpoint, "rpc", endpoint, "JSON-RPC endpoint")
	global.Uint64Var(&c.chainID, "chain-id", 1337, "local chain id used when signing")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		c.usage()
		return 2
	}

	var err error
	switch rest[0] {
	case "generate-key":
		err = c.generateKey(rest[1:])
	case "address":
		err = c.address(rest[1:])
	case "derive":
		err = c.derive(rest[1:])
	case "balance":
		err = c.balance(rest[1:])
	case "height":
		err = c.height()
	case "send":
		err = c.send(rest[1:])
	case "root":
		err = c.root(rest[1:])
	case "receipt":
		err = c.receipt(rest[1:])
	default:
		c.usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(c.stderr, "Error:", err)
		return 1
	}
	return 0
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) generateKey(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("generate-key requires a keystore path")
	}
	pass, err := c.secrets()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(args[0], key, pass); err != nil {
		return err
	}
	return c.printAccount(key.Address().Array())
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	pass, err := c.secrets()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func (c *cli) printAccount(addr [20]byte) error {
	return c.printJSON(map[string]string{
		"address": crypto.AccountAddress(addr).String(),
		"account": "0x" + hex.EncodeToString(addr[:]),
	})
}

func (c *cli) address(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("address requires a keystore path")
	}
	key, err := c.loadKey(args[0])
	if err != nil {
		return err
	}
	return c.printAccount(key.Address().Array())
}

func (c *cli) derive(args []string) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	chainRaw := fs.String("chain", "pdrg", "remote chain id (4 chars or 0x-hex)")
	root := fs.Bool("root", false, "derive the remote root account")
	account := fs.String("account", "", "remote account bytes as hex")
	if err := fs.Parse(args); err != nil {
		return err
	}
	chain, err := identity.ParseChainID(*chainRaw)
	if err != nil {
		return err
	}
	sender := identity.RootSender()
	if !*root {
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(*account), "0x"))
		if err != nil || len(raw) == 0 {
			return fmt.Errorf("--account must be non-empty hex, or pass --root")
		}
		sender = identity.AccountSender(raw)
	}
	return c.printAccount(identity.Derive(chain, sender))
}

type balanceResult struct {
	Address string `json:"address"`
	Account string `json:"account"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func (c *cli) balance(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("balance requires an account")
	}
	var out balanceResult
	if err := c.rpc("").call("bridge_getBalance", &out, args[0]); err != nil {
		return err
	}
	return c.printJSON(out)
}

func (c *cli) height() error {
	var out json.RawMessage
	if err := c.rpc("").call("bridge_getBlockHeight", &out); err != nil {
		return err
	}
	return c.printJSON(out)
}

func callParams(args []string) (json.RawMessage, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, nil
	}
	raw := json.RawMessage(args[0])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("params must be valid JSON")
	}
	return raw, nil
}

func (c *cli) send(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("send requires <keystore> <module> <method> [json]")
	}
	params, err := callParams(args[3:])
	if err != nil {
		return err
	}
	key, err := c.loadKey(args[0])
	if err != nil {
		return err
	}
	addr := key.Address().Array()
	client := c.rpc("")
	var account balanceResult
	if err := client.call("bridge_getBalance", &account, "0x"+hex.EncodeToString(addr[:])); err != nil {
		return err
	}
	tx := &types.Transaction{
		ChainID: c.chainID,
		Nonce:   account.Nonce,
		Module:  args[1],
		Method:  args[2],
		Params:  params,
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return err
	}
	var out json.RawMessage
	if err := client.call("bridge_sendTransaction", &out, tx); err != nil {
		return err
	}
	return c.printJSON(out)
}

func (c *cli) root(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("root requires <module> <method> [json]")
	}
	token := strings.TrimSpace(os.Getenv(operatorTokenEnv))
	if token == "" {
		return fmt.Errorf("%s must hold an operator token", operatorTokenEnv)
	}
	params, err := callParams(args[2:])
	if err != nil {
		return err
	}
	call := map[string]interface{}{"module": args[0], "method": args[1]}
	if params != nil {
		call["params"] = params
	}
	var out json.RawMessage
	if err := c.rpc(token).call("bridge_sendRootCall", &out, call); err != nil {
		return err
	}
	return c.printJSON(out)
}

func (c *cli) receipt(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("receipt requires a transaction hash")
	}
	var out json.RawMessage
	if err := c.rpc("").call("bridge_getReceipt", &out, args[0]); err != nil {
		return err
	}
	return c.printJSON(out)
}
