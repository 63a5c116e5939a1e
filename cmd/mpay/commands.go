package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/postgres"
	"github.com/iho/mpay/internal/usecase"
)

func (c *cli) migrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.NewMigrator(c.cfg.DatabaseURL, c.log).Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return postgres.NewMigrator(c.cfg.DatabaseURL, c.log).Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := postgres.NewMigrator(c.cfg.DatabaseURL, c.log).Version()
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)

				return nil
			},
		},
	)

	return migrateCmd
}

func (c *cli) userCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	userCmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				user, err := a.users.CreateUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Name, user.ID)

				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				users, err := a.users.ListUsers(cmd.Context())
				if err != nil {
					return err
				}

				v := view{header: []string{"ID", "NAME", "ACTIVE", "CREATED"}, records: dto.UsersFromDomain(users)}
				for _, u := range users {
					v.add(strconv.FormatInt(u.ID, 10), u.Name, strconv.FormatBool(u.Active), formatTime(&u.CreatedAt))
				}

				return render(cmd.OutOrStdout(), c.output, v)
			},
		},
		&cobra.Command{
			Use:   "deactivate NAME",
			Short: "Block new payments to and from a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				if err := a.users.DeactivateUser(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "deactivated user %s\n", args[0])

				return nil
			},
		},
	)

	return userCmd
}

func (c *cli) payCommand() *cobra.Command {
	var (
		from             string
		note             string
		agent            string
		due              string
		originalAmount   string
		originalCurrency string
		tags             []string
		createMissing    bool
	)

	payCmd := &cobra.Command{
		Use:   "pay TO AMOUNT",
		Short: "Record a payment",
		Long: `Record that the acting user (or --from) paid AMOUNT to TO.
A negative AMOUNT records a payment in the other direction; put it after --,
e.g. "mpay pay bob -- -12.50".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, args[1])
			}

			if from == "" {
				from = c.as
			}
			if from == "" {
				return domain.ErrActingUserNeeded
			}

			payFrom, payTo, payAmount := domain.Directed(from, args[0], amount)

			input := usecase.PayInput{
				From:          payFrom,
				To:            payTo,
				Amount:        payAmount,
				Agent:         agent,
				Tags:          tags,
				CreatedBy:     c.as,
				CreateMissing: createMissing,
			}

			if note != "" {
				input.Note = &note
			}

			if due != "" {
				dueAt, err := parseTime(due)
				if err != nil {
					return err
				}
				input.DueAt = &dueAt
			}

			if originalAmount != "" || originalCurrency != "" {
				if originalAmount == "" || originalCurrency == "" {
					return domain.ErrOriginalPair
				}

				orig, err := decimal.NewFromString(originalAmount)
				if err != nil {
					return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, originalAmount)
				}

				input.OriginalAmount = &orig
				input.OriginalCurrency = &originalCurrency
			}

			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			id, err := a.payments.Pay(cmd.Context(), input)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recorded transaction %d: %s paid %s %s\n", id, payFrom, payTo, formatAmount(payAmount))

			return nil
		},
	}

	payCmd.Flags().StringVar(&from, "from", "", "paying user (default: acting user)")
	payCmd.Flags().StringVar(&note, "note", "", "free-text note")
	payCmd.Flags().StringVar(&agent, "agent", "", "agent that recorded the payment")
	payCmd.Flags().StringVar(&due, "due", "", "when the payment was due (RFC 3339 or YYYY-MM-DD, default now)")
	payCmd.Flags().StringVar(&originalAmount, "original-amount", "", "amount in the original currency")
	payCmd.Flags().StringVar(&originalCurrency, "original-currency", "", "ISO 4217 code of the original currency")
	payCmd.Flags().StringSliceVar(&tags, "tag", nil, "tag path, e.g. food/groceries (repeatable)")
	payCmd.Flags().BoolVar(&createMissing, "create-missing", false, "create unknown tags and agent")

	return payCmd
}

func (c *cli) balanceCommand() *cobra.Command {
	var all, cached bool

	balanceCmd := &cobra.Command{
		Use:   "balance [USER]",
		Short: "Show derived balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			name := c.as
			if len(args) == 1 {
				name = args[0]
			}

			v := view{header: []string{"USER", "BALANCE"}}

			if all || name == "" {
				get := a.balances.Balances
				if cached {
					get = a.balances.CachedBalances
				}

				balances, err := get(cmd.Context())
				if err != nil {
					return err
				}

				v.records = dto.BalancesFromDomain(balances)
				for _, b := range balances {
					v.add(b.Name, formatAmount(b.Balance))
				}

				return render(cmd.OutOrStdout(), c.output, v)
			}

			get := a.balances.Balance
			if cached {
				get = a.balances.CachedBalance
			}

			balance, err := get(cmd.Context(), name)
			if err != nil {
				return err
			}

			v.records = dto.BalanceResponse{User: name, Balance: balance}
			v.add(name, formatAmount(balance))

			return render(cmd.OutOrStdout(), c.output, v)
		},
	}

	balanceCmd.Flags().BoolVar(&all, "all", false, "show every user")
	balanceCmd.Flags().BoolVar(&cached, "cached", false, "read through the reporting cache")

	return balanceCmd
}

func (c *cli) historyCommand() *cobra.Command {
	var limit, offset int

	historyCmd := &cobra.Command{
		Use:   "history [USER]",
		Short: "List transactions of a user, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := c.as
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return domain.ErrActingUserNeeded
			}

			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			txs, err := a.payments.ListTransactions(cmd.Context(), name, limit, offset)
			if err != nil {
				return err
			}

			names, err := c.userNames(cmd, a)
			if err != nil {
				return err
			}

			v := view{
				header:  []string{"ID", "DUE", "FROM", "TO", "AMOUNT", "ORIGINAL", "NOTE"},
				records: dto.TransactionsFromDomain(txs),
			}
			for _, t := range txs {
				v.add(
					strconv.FormatInt(t.ID, 10),
					formatTime(&t.DueAt),
					names[t.FromUserID],
					names[t.ToUserID],
					formatAmount(t.Amount),
					formatOriginal(t.OriginalAmount, t.OriginalCurrency),
					truncate(deref(t.Note), 40),
				)
			}

			return render(cmd.OutOrStdout(), c.output, v)
		},
	}

	historyCmd.Flags().IntVar(&limit, "limit", 50, "maximum number of transactions")
	historyCmd.Flags().IntVar(&offset, "offset", 0, "number of transactions to skip")

	return historyCmd
}

func (c *cli) userNames(cmd *cobra.Command, a *app) (map[int64]string, error) {
	users, err := a.users.ListUsers(cmd.Context())
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	return names, nil
}

func (c *cli) orderCommand() *cobra.Command {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Manage standing orders",
	}

	var (
		from, to, amount, rule, note string
	)

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a standing order",
		Long: `Create a standing order paying AMOUNT from --from to --to on every
occurrence of an RFC 5545 rule, e.g.
  --rule $'DTSTART:20250101T090000Z\nRRULE:FREQ=MONTHLY'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", domain.ErrInvalidAmount, amount)
			}

			if from == "" {
				from = c.as
			}

			input := usecase.CreateOrderInput{
				Name:   args[0],
				From:   from,
				To:     to,
				Amount: value,
				Rule:   rule,
			}
			if note != "" {
				input.Note = &note
			}

			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			order, err := a.orders.CreateOrder(cmd.Context(), input)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created order %s (%s), next due %s\n", order.Name, order.State(), formatTime(order.NextDueAt))

			return nil
		},
	}

	createCmd.Flags().StringVar(&from, "from", "", "paying user (default: acting user)")
	createCmd.Flags().StringVar(&to, "to", "", "receiving user")
	createCmd.Flags().StringVar(&amount, "amount", "", "amount per occurrence")
	createCmd.Flags().StringVar(&rule, "rule", "", "recurrence rule with DTSTART")
	createCmd.Flags().StringVar(&note, "note", "", "note copied to every transaction")
	_ = createCmd.MarkFlagRequired("to")
	_ = createCmd.MarkFlagRequired("amount")
	_ = createCmd.MarkFlagRequired("rule")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List standing orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			orders, err := a.orders.ListOrders(cmd.Context())
			if err != nil {
				return err
			}

			v := view{
				header:  []string{"NAME", "FROM", "TO", "AMOUNT", "STATE", "NEXT DUE", "CUTOFF"},
				records: dto.OrdersFromDomain(orders),
			}
			for _, o := range orders {
				v.add(o.Name, o.FromUser, o.ToUser, formatAmount(o.Amount), string(o.State()), formatTime(o.NextDueAt), formatTime(o.CutoffAt))
			}

			return render(cmd.OutOrStdout(), c.output, v)
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable NAME",
		Short: "Stop an order for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			order, err := a.orders.DisableOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "disabled order %s, cutoff %s\n", order.Name, formatTime(order.CutoffAt))

			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an order that never produced a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.orders.DeleteOrder(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted order %s\n", args[0])

			return nil
		},
	}

	orderCmd.AddCommand(createCmd, listCmd, disableCmd, deleteCmd)

	return orderCmd
}

func (c *cli) runDueCommand() *cobra.Command {
	var asOf string

	runCmd := &cobra.Command{
		Use:   "run-due",
		Short: "Materialize due standing order occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if asOf != "" {
				t, err := parseTime(asOf)
				if err != nil {
					return err
				}
				at = t
			}

			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			report, err := a.scheduler.RunDue(cmd.Context(), at)
			if err != nil {
				return err
			}

			v := view{
				header:  []string{"ORDER", "MATERIALIZED", "EXHAUSTED", "ERROR"},
				records: dto.RunReportFromUseCase(report),
			}
			for _, res := range report.Results {
				errText := ""
				if res.Err != nil {
					errText = res.Err.Error()
				}
				v.add(res.Name, strconv.Itoa(len(res.TransactionIDs)), strconv.FormatBool(res.Exhausted), errText)
			}

			if err := render(cmd.OutOrStdout(), c.output, v); err != nil {
				return err
			}

			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d orders failed", len(failed), len(report.Results))
			}

			return nil
		},
	}

	runCmd.Flags().StringVar(&asOf, "as-of", "", "materialize occurrences up to this time (default now)")

	return runCmd
}

func (c *cli) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify ledger consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.ledger(cmd.Context())
			if err != nil {
				return err
			}

			violations, err := a.checker.Check(cmd.Context())
			if err != nil {
				return err
			}

			if c.output == formatJSON {
				if err := render(cmd.OutOrStdout(), c.output, view{records: dto.CheckFromDomain(violations)}); err != nil {
					return err
				}
			} else if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ledger is consistent")
			} else {
				for _, v := range violations {
					fmt.Fprintln(cmd.OutOrStdout(), v.String())
				}
			}

			if len(violations) > 0 {
				return errViolations
			}

			return nil
		},
	}
}

// optionalArg returns args[i], or "" when it was not given.
func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}

	return ""
}

func (c *cli) tagCommand() *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	tagCmd.AddCommand(
		&cobra.Command{
			Use:   "create PATH [DESCRIPTION]",
			Short: "Create a tag, e.g. food/groceries",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				tag, err := a.tags.CreateTag(cmd.Context(), args[0], optionalArg(args, 1))
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created tag %s\n", tag.Path)

				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List tags",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				tags, err := a.tags.ListTags(cmd.Context())
				if err != nil {
					return err
				}

				v := view{header: []string{"ID", "PATH", "DESCRIPTION"}, records: dto.TagsFromDomain(tags)}
				for _, t := range tags {
					v.add(strconv.FormatInt(t.ID, 10), t.Path, deref(t.Description))
				}

				return render(cmd.OutOrStdout(), c.output, v)
			},
		},
		&cobra.Command{
			Use:   "tree",
			Short: "Print the tag hierarchy",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				roots, err := a.tags.TagTree(cmd.Context())
				if err != nil {
					return err
				}

				if c.output == formatTable {
					return writeTagTree(cmd.OutOrStdout(), roots)
				}

				tags, err := a.tags.ListTags(cmd.Context())
				if err != nil {
					return err
				}

				v := view{header: []string{"ID", "PATH", "DESCRIPTION"}, records: dto.TagTreeFromDomain(roots)}
				for _, t := range tags {
					v.add(strconv.FormatInt(t.ID, 10), t.Path, deref(t.Description))
				}

				return render(cmd.OutOrStdout(), c.output, v)
			},
		},
	)

	return tagCmd
}

func (c *cli) agentCommand() *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	agentCmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME [DESCRIPTION]",
			Short: "Create an agent",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				agent, err := a.tags.CreateAgent(cmd.Context(), args[0], optionalArg(args, 1))
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created agent %s\n", agent.Name)

				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List agents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := c.ledger(cmd.Context())
				if err != nil {
					return err
				}

				agents, err := a.tags.ListAgents(cmd.Context())
				if err != nil {
					return err
				}

				v := view{header: []string{"ID", "NAME", "DESCRIPTION"}, records: dto.AgentsFromDomain(agents)}
				for _, ag := range agents {
					v.add(strconv.FormatInt(ag.ID, 10), ag.Name, deref(ag.Description))
				}

				return render(cmd.OutOrStdout(), c.output, v)
			},
		},
	)

	return agentCmd
}

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	return time.Time{}, errors.New("invalid time " + strconv.Quote(s) + ", use RFC 3339 or YYYY-MM-DD")
}
