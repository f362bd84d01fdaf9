package ledgersim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
)

// Scenario is a scripted session against a pool backed by simulated ledgers.
type Scenario struct {
	Name   string      `yaml:"name"`
	Pool   string      `yaml:"pool"`
	Owner  string      `yaml:"owner"`
	Tokens []TokenSpec `yaml:"tokens"`
	Mint   []MintSpec  `yaml:"mint"`
	Steps  []Step      `yaml:"steps"`
	Expect *Expect     `yaml:"expect,omitempty"`
}

type TokenSpec struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type MintSpec struct {
	Account string `yaml:"account"`
	Token   string `yaml:"token"`
	Amount  string `yaml:"amount"`
}

const (
	ActionBootstrap = "bootstrap"
	ActionTransfer  = "transfer"
)

// Step is either a bootstrap of the pair TokenA/TokenB, or a transfer-call of
// Amount of Token from From into the pool.
type Step struct {
	Action string `yaml:"action"`
	TokenA string `yaml:"token_a,omitempty"`
	TokenB string `yaml:"token_b,omitempty"`
	From   string `yaml:"from,omitempty"`
	Token  string `yaml:"token,omitempty"`
	Amount string `yaml:"amount,omitempty"`
}

// Expect lists the final state a scenario must reach. Supplies are keyed by
// token name, balances by account then token name.
type Expect struct {
	Initialized *bool                        `yaml:"initialized,omitempty"`
	Supplies    map[string]string            `yaml:"supplies,omitempty"`
	Balances    map[string]map[string]string `yaml:"balances,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step     Step   `json:"step"`
	Outcome  string `json:"outcome,omitempty"`
	Used     string `json:"used,omitempty"`
	Refunded string `json:"refunded,omitempty"`
	Payout   string `json:"payout,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report is the result of running a scenario.
type Report struct {
	Name     string                       `json:"name"`
	Steps    []StepResult                 `json:"steps"`
	Pool     *model.PoolInfo              `json:"pool"`
	Balances map[string]map[string]string `json:"balances"`
	// Mismatches lists failed expectations.
	Mismatches []string `json:"mismatches,omitempty"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

func (s *Scenario) validate() error {
	if s.Pool == "" {
		s.Pool = "pool"
	}
	if s.Owner == "" {
		return errors.New("scenario owner is required")
	}
	if len(s.Tokens) == 0 {
		return errors.New("scenario declares no tokens")
	}
	known := make(map[string]bool, len(s.Tokens))
	for _, token := range s.Tokens {
		if token.Name == "" {
			return errors.New("token name is required")
		}
		known[token.Name] = true
	}
	for i, step := range s.Steps {
		if step.Action == "" {
			s.Steps[i].Action = ActionTransfer
		}
		switch s.Steps[i].Action {
		case ActionBootstrap:
			if step.TokenA == "" || step.TokenB == "" {
				return fmt.Errorf("step %d: bootstrap needs token_a and token_b", i)
			}
		case ActionTransfer:
			if !known[step.Token] {
				return fmt.Errorf("step %d: unknown token %q", i, step.Token)
			}
			if step.From == "" {
				return fmt.Errorf("step %d: transfer needs from", i)
			}
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return nil
}

// Run plays the scenario against a fresh pool. Step failures are part of the
// report; the returned error covers malformed scenarios only.
func Run(ctx context.Context, s Scenario, logger *zap.Logger, reg prometheus.Registerer) (Report, error) {
	if err := s.validate(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	network := NewNetwork(logger)
	for _, spec := range s.Tokens {
		network.Deploy(spec.Name, spec.Symbol, spec.Decimals)
	}

	accounts := map[string]bool{s.Owner: true, s.Pool: true}
	for _, mint := range s.Mint {
		token, err := network.Token(Address(mint.Token))
		if err != nil {
			return Report{}, fmt.Errorf("mint: %w", err)
		}
		amount, err := parseAmount(mint.Amount)
		if err != nil {
			return Report{}, fmt.Errorf("mint %s: %w", mint.Token, err)
		}
		if err := token.Mint(Address(mint.Account), amount); err != nil {
			return Report{}, err
		}
		accounts[mint.Account] = true
	}

	self := Address(s.Pool)
	p := pool.New(pool.Config{Self: self, Owner: Address(s.Owner), Registerer: reg}, network.Gateway(self), storage.NewMemoryStore(), logger)
	if err := p.Open(ctx); err != nil {
		return Report{}, err
	}

	report := Report{Name: s.Name}
	for _, step := range s.Steps {
		result := StepResult{Step: step}
		switch step.Action {
		case ActionBootstrap:
			if err := p.Bootstrap(ctx, self, Address(step.TokenA), Address(step.TokenB)); err != nil {
				result.Error = err.Error()
			}
		case ActionTransfer:
			accounts[step.From] = true
			runTransfer(ctx, network, p, self, step, &result)
		}
		report.Steps = append(report.Steps, result)
	}

	report.Pool = p.Info()
	report.Balances = make(map[string]map[string]string, len(accounts))
	for account := range accounts {
		balances := make(map[string]string, len(s.Tokens))
		for _, spec := range s.Tokens {
			token, _ := network.Token(Address(spec.Name))
			balances[spec.Name] = token.BalanceOf(Address(account)).Dec()
		}
		report.Balances[account] = balances
	}
	if s.Expect != nil {
		report.Mismatches = s.Expect.check(report)
	}
	return report, nil
}

func runTransfer(ctx context.Context, network *Network, p *pool.Pool, self common.Address, step Step, result *StepResult) {
	amount, err := parseAmount(step.Amount)
	if err != nil {
		result.Error = err.Error()
		return
	}
	res, err := network.TransferCall(ctx, Address(step.Token), Address(step.From), self, p, amount)
	if err != nil {
		result.Error = err.Error()
		return
	}
	result.Used = res.Used.Dec()
	result.Refunded = res.Refunded.Dec()
	if res.Err != nil {
		result.Error = res.Err.Error()
		return
	}
	result.Outcome = string(res.Receipt.Outcome)
	if res.Receipt.Outcome == pool.OutcomeExchange {
		result.Payout = res.Receipt.Payout.Dec()
	}
}

func (e *Expect) check(report Report) []string {
	var mismatches []string
	if e.Initialized != nil && *e.Initialized != (report.Pool != nil) {
		mismatches = append(mismatches, fmt.Sprintf("initialized: want %t, got %t", *e.Initialized, report.Pool != nil))
	}

	if len(e.Supplies) > 0 {
		supplies := map[string]string{}
		if report.Pool != nil {
			supplies[report.Pool.TokenAName] = report.Pool.TokenASupply
			supplies[report.Pool.TokenBName] = report.Pool.TokenBSupply
		}
		for _, name := range sortedKeys(e.Supplies) {
			if got := supplies[name]; got != e.Supplies[name] {
				mismatches = append(mismatches, fmt.Sprintf("supply %s: want %s, got %q", name, e.Supplies[name], got))
			}
		}
	}

	for _, account := range sortedKeys(e.Balances) {
		want := e.Balances[account]
		for _, token := range sortedKeys(want) {
			if got := report.Balances[account][token]; got != want[token] {
				mismatches = append(mismatches, fmt.Sprintf("balance %s/%s: want %s, got %q", account, token, want[token], got))
			}
		}
	}
	return mismatches
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
