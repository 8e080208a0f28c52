package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pavelanni/mocktest/internal/api"
	"github.com/pavelanni/mocktest/internal/forms"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/model"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE:  runLogin,
	}
	f := cmd.Flags()
	f.String("email", "", "Account email")
	f.String("password", "", "Password (prompted when empty)")
	return cmd
}

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE:  runSignup,
	}
	f := cmd.Flags()
	f.String("full-name", "", "Full name")
	f.String("username", "", "Username")
	f.String("email", "", "Account email")
	f.String("password", "", "Password (prompted when empty)")
	f.String("dob", "", "Date of birth, YYYY-MM-DD")
	f.String("gender", "", "Gender (male, female, other)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget it locally",
		RunE:  runLogout,
	}
}

func forgotPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Reset the password with a one-time code sent by email",
		RunE:  runForgotPassword,
	}
	f := cmd.Flags()
	f.String("email", "", "Account email")
	f.String("otp", "", "One-time code (prompted when empty)")
	f.String("new-password", "", "New password (prompted when empty)")
	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the profile",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the signed-in user's profile",
		RunE:  runProfileShow,
	}
	update := &cobra.Command{
		Use:   "update",
		Short: "Update the profile fields",
		RunE:  runProfileUpdate,
	}
	f := update.Flags()
	f.String("full-name", "", "Full name")
	f.String("dob", "", "Date of birth, YYYY-MM-DD")
	f.String("gender", "", "Gender (male, female, other)")
	cmd.AddCommand(show, update)
	cmd.RunE = show.RunE
	return cmd
}

// readSecret prompts for a value without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secretFlag returns the flag value or prompts for it.
func secretFlag(c *client, key, promptID string) (string, error) {
	if s := c.v.GetString(key); s != "" {
		return s, nil
	}
	return readSecret(appI18n.T(c.ctx, promptID))
}

// printValidation lists the field messages of a forms.ValidationError.
func printValidation(err error) error {
	fields := forms.FieldErrors(err)
	if len(fields) == 0 {
		return err
	}
	for field, msg := range fields {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
	}
	return err
}

func runLogin(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	form := forms.Login{Email: c.v.GetString("email")}
	if form.Password, err = secretFlag(c, "password", "PromptPassword"); err != nil {
		return err
	}
	if err := forms.Validate(&form); err != nil {
		return printValidation(err)
	}
	acct, err := c.api.Login(c.ctx, form.Email, form.Password)
	if err != nil {
		return fmt.Errorf("login: %s", api.DetailOf(err))
	}
	if err := c.store.SetAccount(acct); err != nil {
		return fmt.Errorf("remember account: %w", err)
	}
	fmt.Println(appI18n.Td(c.ctx, "SignedIn", map[string]any{"Username": acct.Username, "Email": acct.Email}))
	return nil
}

func runSignup(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	form := forms.Signup{
		FullName: c.v.GetString("full-name"),
		Username: c.v.GetString("username"),
		Email:    c.v.GetString("email"),
		DOB:      c.v.GetString("dob"),
		Gender:   strings.ToLower(c.v.GetString("gender")),
	}
	if form.Password, err = secretFlag(c, "password", "PromptPassword"); err != nil {
		return err
	}
	if err := forms.Validate(&form); err != nil {
		return printValidation(err)
	}
	p, err := c.api.Signup(c.ctx, api.SignupRequest{
		FullName: form.FullName,
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		DOB:      form.DOB,
		Gender:   form.Gender,
	})
	if err != nil {
		return fmt.Errorf("signup: %s", api.DetailOf(err))
	}
	fmt.Println(appI18n.Td(c.ctx, "SignedUp", map[string]any{"Username": p.Username}))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.api.Logout(c.ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := c.store.ClearAccount(); err != nil {
		return fmt.Errorf("forget account: %w", err)
	}
	fmt.Println(appI18n.T(c.ctx, "SignedOut"))
	return nil
}

func runForgotPassword(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	forgot := forms.Forgot{Email: c.v.GetString("email")}
	if err := forms.Validate(&forgot); err != nil {
		return printValidation(err)
	}
	if _, err := c.api.ForgotPassword(c.ctx, forgot.Email); err != nil {
		return fmt.Errorf("request code: %s", api.DetailOf(err))
	}
	fmt.Println(appI18n.Td(c.ctx, "OTPSent", map[string]any{"Email": forgot.Email}))

	otp := forms.OTP{Email: forgot.Email}
	if otp.Code, err = secretFlag(c, "otp", "PromptOTP"); err != nil {
		return err
	}
	if err := forms.Validate(&otp); err != nil {
		return printValidation(err)
	}
	if _, err := c.api.VerifyOTP(c.ctx, otp.Email, otp.Code); err != nil {
		return fmt.Errorf("verify code: %s", api.DetailOf(err))
	}
	fmt.Println(appI18n.T(c.ctx, "OTPVerified"))

	reset := forms.Reset{Email: forgot.Email}
	if reset.NewPassword, err = secretFlag(c, "new-password", "PromptNewPassword"); err != nil {
		return err
	}
	reset.Confirm = reset.NewPassword
	if c.v.GetString("new-password") == "" {
		if reset.Confirm, err = readSecret(appI18n.T(c.ctx, "PromptConfirmPassword")); err != nil {
			return err
		}
	}
	if err := forms.Validate(&reset); err != nil {
		return printValidation(err)
	}
	if _, err := c.api.ResetPassword(c.ctx, reset.Email, reset.NewPassword); err != nil {
		return fmt.Errorf("reset password: %s", api.DetailOf(err))
	}
	fmt.Println(appI18n.T(c.ctx, "PasswordReset"))
	return nil
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.requireSession()
	if err != nil {
		return err
	}
	printProfile(p)
	return nil
}

func runProfileUpdate(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	current, err := c.requireSession()
	if err != nil {
		return err
	}
	form := forms.Profile{
		FullName: current.Details.FullName,
		DOB:      current.Details.DOB,
		Gender:   current.Details.Gender,
	}
	if cmd.Flags().Changed("full-name") {
		form.FullName = c.v.GetString("full-name")
	}
	if cmd.Flags().Changed("dob") {
		form.DOB = c.v.GetString("dob")
	}
	if cmd.Flags().Changed("gender") {
		form.Gender = strings.ToLower(c.v.GetString("gender"))
	}
	if err := forms.Validate(&form); err != nil {
		return printValidation(err)
	}
	d, err := c.api.UpdateProfile(c.ctx, model.ProfileDetails{FullName: form.FullName, DOB: form.DOB, Gender: form.Gender})
	if err != nil {
		return fmt.Errorf("update profile: %s", api.DetailOf(err))
	}
	current.Details = d
	fmt.Println(appI18n.T(c.ctx, "ProfileUpdated"))
	printProfile(current)
	return nil
}

func printProfile(p model.Profile) {
	fmt.Printf("username:  %s\n", p.Username)
	fmt.Printf("email:     %s\n", p.Email)
	fmt.Printf("full name: %s\n", p.Details.FullName)
	fmt.Printf("dob:       %s\n", p.Details.DOB)
	fmt.Printf("gender:    %s\n", p.Details.Gender)
}
