package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/backend"
	"github.com/wolfman30/clinic-booking/internal/booking"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/payments"
	"github.com/wolfman30/clinic-booking/internal/screens"
	"github.com/wolfman30/clinic-booking/internal/session"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(appconfig.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *appconfig.Config) *cobra.Command {
	var logLevel string
	var metricsDump bool
	var a *app

	rootCmd := &cobra.Command{
		Use:          "booking-cli",
		Short:        "Book clinic sessions from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewWithWriter(logLevel, cmd.ErrOrStderr())
			built, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			a = built
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&metricsDump, "metrics-dump", false, "print client metrics to stderr on exit")

	current := func() *app { return a }
	rootCmd.AddCommand(
		clinicsCmd(current),
		servicesCmd(current),
		datesCmd(current),
		bookCmd(current),
		loginCmd(current),
		logoutCmd(current),
		bookingsCmd(current),
	)

	// Cleanup runs even when a command fails; cobra skips post-run hooks on error.
	for _, c := range rootCmd.Commands() {
		run := c.RunE
		if run == nil {
			continue
		}
		c.RunE = func(cmd *cobra.Command, args []string) error {
			defer func() {
				if a == nil {
					return
				}
				if metricsDump {
					if err := dumpMetrics(cmd.ErrOrStderr(), a.registry); err != nil {
						a.logger.Warn("metrics dump failed", "error", err)
					}
				}
				a.close()
			}()
			return run(cmd, args)
		}
	}
	return rootCmd
}

// dumpMetrics writes every gathered family in the Prometheus text format.
func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func clinicsCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clinics",
		Short: "List clinics and their booking windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinics, err := a().catalog.Clinics(cmd.Context())
			if err != nil {
				return userError(err)
			}
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tWINDOW")
			for _, c := range clinics {
				window := ""
				if c.BookingWindow != nil {
					window = c.BookingWindow.Label()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.DisplayName(), c.Status(now).Message(), window)
			}
			return tw.Flush()
		},
	}
}

func servicesCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := a().catalog.Services(cmd.Context())
			if err != nil {
				return userError(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tTITLE\tPRICE\tMRP")
			for _, s := range services {
				fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.0f\n", s.Slug, s.Title, s.Price, s.MRP)
			}
			return tw.Flush()
		},
	}
}

func datesCmd(a func() *app) *cobra.Command {
	var clinicID string
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Show bookable dates and slots for a clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a().api.GetAvailableDates(cmd.Context(), clinicID)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			now := time.Now()
			for _, d := range cal.Chronological() {
				if !availability.Markable(d, now) {
					continue
				}
				times := make([]string, 0, len(d.Slots))
				for _, s := range d.AvailableSlots() {
					times = append(times, s.Time)
				}
				fmt.Fprintf(out, "%s  %s\n", d.Date, strings.Join(times, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clinicID, "clinic", "", "clinic id")
	_ = cmd.MarkFlagRequired("clinic")
	return cmd
}

type bookOptions struct {
	clinic   string
	sessions int
	date     string
	time     string
	name     string
	email    string
	phone    string
	method   string
	outcome  string
	otp      string
}

func bookCmd(a func() *app) *cobra.Command {
	var opts bookOptions
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book sessions end to end through the sandbox checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(cmd.Context(), a(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.clinic, "clinic", "", "clinic id")
	f.IntVar(&opts.sessions, "sessions", 1, "number of sessions (1-6)")
	f.StringVar(&opts.date, "date", "", "date (YYYY-MM-DD); defaults to the first bookable date")
	f.StringVar(&opts.time, "time", "", "slot time (HH:MM)")
	f.StringVar(&opts.name, "name", "", "patient name")
	f.StringVar(&opts.email, "email", "", "patient email")
	f.StringVar(&opts.phone, "phone", "", "10-digit phone number")
	f.StringVar(&opts.method, "method", string(booking.MethodOnline), "payment method (online or card)")
	f.StringVar(&opts.outcome, "outcome", string(payments.OutcomeSucceed), "sandbox checkout outcome (success, cancel, fail)")
	f.StringVar(&opts.otp, "otp", "", "OTP for phone verification; prompted when the backend does not echo it")
	_ = cmd.MarkFlagRequired("clinic")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func runBook(ctx context.Context, a *app, opts bookOptions, in io.Reader, out, notes io.Writer) error {
	run := a.newBookingRun(payments.ParseOutcome(opts.outcome), notes)
	defer run.auditor.Wait()
	w := run.wizard

	if err := w.Start(ctx); err != nil {
		return userError(err)
	}
	if err := w.Clinic().Select(opts.clinic); err != nil {
		return stepError(err)
	}
	if err := w.Advance(ctx); err != nil {
		return stepError(err)
	}

	if err := w.Sessions().Select(opts.sessions); err != nil {
		return stepError(err)
	}
	if err := w.Advance(ctx); err != nil {
		return stepError(err)
	}

	if opts.date != "" {
		if err := w.DateTime().SelectDate(opts.date); err != nil {
			return slotError(err)
		}
	}
	if _, err := w.DateTime().SelectTime(opts.time); err != nil {
		return slotError(err)
	}
	if err := w.Advance(ctx); err != nil {
		return stepError(err)
	}

	patient := w.PatientInfo()
	if opts.name != "" {
		patient.SetName(opts.name)
	}
	if opts.email != "" {
		patient.SetEmail(opts.email)
	}
	if opts.phone != "" {
		patient.SetPhone(opts.phone)
	}
	hint, err := patient.SendOTP(ctx)
	if err != nil {
		return otpError(err)
	}
	code := opts.otp
	if code == "" {
		code = hint
	}
	if code == "" {
		if code, err = prompt(in, out, "Enter the OTP sent to your phone: "); err != nil {
			return err
		}
	}
	if err := patient.VerifyOTP(ctx, code); err != nil {
		return otpError(err)
	}
	if err := w.Advance(ctx); err != nil {
		return stepError(err)
	}

	summary := w.Summary()
	if err := summary.SetMethod(booking.PaymentMethod(opts.method)); err != nil {
		return err
	}
	printQuote(out, summary.Quote())

	snap, err := summary.Pay(ctx)
	if err != nil {
		return errors.New(payments.AlertMessage(err))
	}
	switch snap.Status {
	case payments.StatusBookingConfirmed:
		fmt.Fprintf(out, "Booking confirmed: %s (transaction %s)\n", snap.BookingID, snap.TransactionID)
		return nil
	case payments.StatusPaymentCancelled:
		fmt.Fprintf(out, "Payment cancelled: %s\n", snap.Message)
	default:
		fmt.Fprintf(out, "Payment failed: %s\n", snap.Message)
	}
	return fmt.Errorf("booking not completed (%s)", snap.Status)
}

// userError turns a backend failure into the text a patient would see.
func userError(err error) error {
	return errors.New(backend.UserMessage(err))
}

func stepError(err error) error {
	switch {
	case screens.IsValidation(err):
		return errors.New(screens.UserMessage(err))
	case errors.Is(err, booking.ErrClinicUnavailable):
		return errors.New("This clinic is not available for booking at the moment")
	}
	return userError(err)
}

func slotError(err error) error {
	if screens.IsValidation(err) {
		return stepError(err)
	}
	return errors.New(availability.UserMessage(err))
}

func otpError(err error) error {
	if screens.IsValidation(err) {
		return stepError(err)
	}
	return errors.New(session.UserMessage(err))
}

func printQuote(out io.Writer, q booking.Quote) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Sessions\t%d x %d\n", q.Sessions, q.UnitPrice)
	fmt.Fprintf(tw, "Subtotal\t%d\n", q.Total)
	fmt.Fprintf(tw, "You save\t%d\n", q.Savings)
	fmt.Fprintf(tw, "Tax\t%d\n", q.Tax)
	if q.CardFee > 0 {
		fmt.Fprintf(tw, "Card fee\t%d\n", q.CardFee)
	}
	fmt.Fprintf(tw, "Total\t%d\n", q.Final)
	_ = tw.Flush()
}

func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}

func loginCmd(a func() *app) *cobra.Command {
	var email, password, otp string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider := a().session
			err := provider.Login(ctx, email, password)
			if errors.Is(err, session.ErrOTPRequired) {
				if otp == "" {
					return errors.New("account not verified: check your email and rerun with --otp")
				}
				err = provider.VerifyOTP(ctx, backend.OTPTarget{Email: email}, otp)
			}
			if err != nil {
				return errors.New(session.UserMessage(err))
			}
			name := email
			if p := provider.Profile(); p != nil && p.Name != "" {
				name = p.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&otp, "otp", "", "email OTP for unverified accounts")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a().session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func bookingsCmd(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bookings",
		Short: "List your bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a().session.IsAuthenticated() {
				return errors.New(session.UserMessage(session.ErrNoToken))
			}
			history, err := a().api.ListBookings(cmd.Context())
			if err != nil {
				return userError(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCLINIC\tDATE\tTIME\tSESSIONS\tSTATUS\tPAYMENT")
			for _, group := range [][]backend.Booking{history.Current, history.History} {
				for _, b := range group {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", b.ID, b.ClinicName, b.Date, b.Time, b.Sessions, b.Status, b.PaymentStatus)
				}
			}
			return tw.Flush()
		},
	}
}
