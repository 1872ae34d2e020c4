package prompt

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adam-hanna/arrayOperations"
	"github.com/apex/log"
	"github.com/pkg/browser"
	"google.golang.org/api/cloudbilling/v1"
	"google.golang.org/api/option"

	"github.com/django-cloud/dcd/cli/util"
)

const (
	defaultProjectName = "Django Project"

	billingCreateURL    = "https://console.cloud.google.com/billing/create"
	billingPollInterval = 2 * time.Second
)

// CredentialsPrompt resolves access to the user's Google account. It is the
// one prompter without a string value: the loaded application default
// credentials end up on the state as API client options.
type CredentialsPrompt struct{}

func (CredentialsPrompt) Name() string { return ParamCredentials }

// Validate accepts a path to a service account key file and registers it as
// the credentials source.
func (CredentialsPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	if _, err := os.Stat(value); err != nil {
		return fmt.Errorf("credentials file %q is not readable: %s", value,
			err)
	}
	st.ClientOptions = []option.ClientOption{option.WithCredentialsFile(value)}

	return nil
}

func (CredentialsPrompt) Resolve(ctx context.Context, st *State) error {
	if st.NonInteractive {
		if !st.Auth.HasDefaultCredentials(ctx) {
			return fmt.Errorf("application default credentials are not "+
				"available in non-interactive mode, pass --credentials or "+
				"run %q first", "gcloud auth application-default login")
		}
	} else {
		st.Console.Println(st.Step + " In order to deploy your application, " +
			"you must allow Django Deploy to access your Google account.")

		login := true
		if account := st.Auth.ActiveAccount(); account != "" {
			reuse, err := st.confirm(fmt.Sprintf("You have logged in with "+
				"account [%s]. Do you want to use it?", account), true)
			if err != nil {
				return err
			}
			login = !reuse
		}
		if login || !st.Auth.HasDefaultCredentials(ctx) {
			if err := st.Auth.ApplicationDefaultLogin(); err != nil {
				return err
			}
		}
	}

	opts, err := st.Auth.ClientOptions(ctx)
	if err != nil {
		return err
	}
	st.ClientOptions = opts

	return nil
}

var (
	projectIDRegexp = regexp.MustCompile(`^[a-z][a-z0-9-]{5,29}$`)
	invalidIDChars  = regexp.MustCompile(`[^a-z0-9-]`)
)

// ValidateProjectID checks the Google Cloud project id format.
func ValidateProjectID(value string) error {
	if !projectIDRegexp.MatchString(value) {
		return fmt.Errorf("Invalid Google Cloud Platform Project ID %q: "+
			"must be between 6 and 30 characters and contain lowercase "+
			"letters, digits or hyphens", value)
	}

	return nil
}

// DefaultProjectID derives a conforming project id from a free-form project
// name and appends a random numeric suffix to make it unique.
func DefaultProjectID(projectName string) (string, error) {
	id := strings.ToLower(projectName)
	if id == "" {
		id = "django"
	}
	id = strings.ReplaceAll(id, " ", "-")
	if id[0] < 'a' || id[0] > 'z' {
		id = "django-" + id
	}
	id = invalidIDChars.ReplaceAllString(id, "")
	id = id[:util.Min(len(id), 23)]

	suffix, err := util.RandomDigits(6)
	if err != nil {
		return "", err
	}

	return id + "-" + suffix, nil
}

// ProjectIDPrompt resolves the Google Cloud project id: a new id to create
// a project under, or with --use-existing-project the id of an accessible
// existing project.
type ProjectIDPrompt struct{}

func (ProjectIDPrompt) Name() string { return ParamProjectID }

func (p ProjectIDPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	if err := ValidateProjectID(value); err != nil {
		return err
	}
	if !st.UseExistingProject {
		return nil
	}

	client, err := st.ProjectClient(ctx)
	if err != nil {
		return err
	}
	exists, err := client.ProjectExists(ctx, value)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("Project %s does not exist", value)
	}

	return nil
}

func (p ProjectIDPrompt) Resolve(ctx context.Context, st *State) error {
	if st.UseExistingProject {
		question := fmt.Sprintf("%s Enter the %s Google Cloud Platform "+
			"Project ID to use.", st.Step, util.Bold("existing"))
		value, err := st.ask(ParamProjectID, question, "",
			func(value string) error {
				return p.Validate(ctx, st, value)
			})
		if err != nil {
			return err
		}
		st.Params[ParamProjectID] = value

		return nil
	}

	defaultID, err := DefaultProjectID(st.Params[ParamProjectName])
	if err != nil {
		return err
	}
	question := fmt.Sprintf("%s Enter a Google Cloud Platform Project ID, "+
		"or leave blank to use\n[%s]: ", st.Step, defaultID)
	value, err := st.ask(ParamProjectID, question, defaultID,
		ValidateProjectID)
	if err != nil {
		return err
	}
	st.Params[ParamProjectID] = value

	return nil
}

// ValidateProjectName checks the Google Cloud project name length.
func ValidateProjectName(value string) error {
	if n := utf8.RuneCountInString(value); n < 4 || n > 30 {
		return fmt.Errorf("Invalid Google Cloud Platform project name %q: "+
			"must be between 4 and 30 characters", value)
	}

	return nil
}

// ProjectNamePrompt resolves the human readable project name. With an
// existing project the name comes from the project itself.
type ProjectNamePrompt struct{}

func (ProjectNamePrompt) Name() string { return ParamProjectName }

func (ProjectNamePrompt) Validate(ctx context.Context, st *State,
	value string) error {
	if err := ValidateProjectName(value); err != nil {
		return err
	}
	if !st.UseExistingProject {
		return nil
	}

	projectID := st.Params[ParamProjectID]
	if projectID == "" {
		return fmt.Errorf("Project Id must be set")
	}
	client, err := st.ProjectClient(ctx)
	if err != nil {
		return err
	}
	project, err := client.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Name != value {
		return fmt.Errorf("Wrong project name given for project id.")
	}

	return nil
}

func (ProjectNamePrompt) Resolve(ctx context.Context, st *State) error {
	if st.UseExistingProject {
		client, err := st.ProjectClient(ctx)
		if err != nil {
			return err
		}
		project, err := client.GetProject(ctx, st.Params[ParamProjectID])
		if err != nil {
			return err
		}
		st.Console.Printf("%s %s: %s\n", st.Step, ParamProjectName,
			project.Name)
		st.Params[ParamProjectName] = project.Name

		return nil
	}

	question := fmt.Sprintf("%s Enter a Google Cloud Platform project name, "+
		"or leave blank to use\n[%s]: ", st.Step, defaultProjectName)
	value, err := st.ask(ParamProjectName, question, defaultProjectName,
		ValidateProjectName)
	if err != nil {
		return err
	}
	st.Params[ParamProjectName] = value

	return nil
}

// BillingPrompt resolves the billing account funding the project.
type BillingPrompt struct {
	pollInterval time.Duration
	openBrowser  func(url string) error
}

func (*BillingPrompt) Name() string { return ParamBillingAccount }

func (p *BillingPrompt) Validate(ctx context.Context, st *State,
	value string) error {
	client, err := st.BillingClient(ctx)
	if err != nil {
		return err
	}
	accounts, err := client.ListOpenBillingAccounts(ctx)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if account.Name == value {
			return nil
		}
	}

	return fmt.Errorf("The provided billing account does not exist.")
}

func (p *BillingPrompt) Resolve(ctx context.Context, st *State) error {
	client, err := st.BillingClient(ctx)
	if err != nil {
		return err
	}

	if st.UseExistingProject {
		enabled, account, err := client.CheckBillingEnabled(ctx,
			st.Params[ParamProjectID])
		if err != nil {
			return err
		}
		if enabled {
			st.Console.Println(st.Step +
				" Billing is already enabled on this project.")
			st.Params[ParamBillingAccount] = account

			return nil
		}
	}

	if st.NonInteractive {
		return fmt.Errorf("%q is required in non-interactive mode",
			ParamBillingAccount)
	}

	st.Console.Println(st.Step + " In order to deploy your application, " +
		"you must enable billing for your Google Cloud Project.")

	accounts, err := client.ListOpenBillingAccounts(ctx)
	if err != nil {
		return err
	}

	var name string
	if len(accounts) == 0 {
		st.Console.Println("You do not have existing billing accounts.")
		_, err = st.Console.Ask(
			"Press [Enter] to create a new billing account.")
		if err != nil {
			return err
		}
		name, err = p.waitNewAccount(ctx, st, accounts)
	} else {
		name, err = p.chooseAccount(ctx, st, accounts)
	}
	if err != nil {
		return err
	}
	st.Params[ParamBillingAccount] = name

	return nil
}

func (p *BillingPrompt) chooseAccount(ctx context.Context, st *State,
	accounts []*cloudbilling.BillingAccount) (string, error) {
	var lines []string
	for i, account := range accounts {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, account.DisplayName))
	}
	question := fmt.Sprintf("You have the following existing billing "+
		"accounts:\n%s\nPlease enter your numeric choice or press [Enter] "+
		"to create a new billing account: ", strings.Join(lines, "\n"))

	for {
		answer, err := st.Console.Ask(question)
		if err != nil {
			return "", err
		}
		if answer == "" {
			return p.waitNewAccount(ctx, st, accounts)
		}

		choice, err := strconv.Atoi(answer)
		if err != nil {
			st.Console.Errorf("Please enter a numeric value\n")
			continue
		}
		if choice < 1 || choice > len(accounts) {
			st.Console.Errorf("Value is not in range\n")
			continue
		}

		return accounts[choice-1].Name, nil
	}
}

// waitNewAccount opens the billing console in the browser and polls the
// account list until one that was not there before shows up.
func (p *BillingPrompt) waitNewAccount(ctx context.Context, st *State,
	existing []*cloudbilling.BillingAccount) (string, error) {
	open := p.openBrowser
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(billingCreateURL); err != nil {
		log.Warnf("Failed to open the browser: %s", err)
		st.Console.Println("Create a billing account at " + billingCreateURL)
	}

	existingNames := make([]string, 0, len(existing))
	for _, account := range existing {
		existingNames = append(existingNames, account.Name)
	}

	client, err := st.BillingClient(ctx)
	if err != nil {
		return "", err
	}

	interval := p.pollInterval
	if interval == 0 {
		interval = billingPollInterval
	}

	st.Console.Println("Waiting for billing account to be created.")
	for {
		accounts, err := client.ListOpenBillingAccounts(ctx)
		if err != nil {
			return "", err
		}
		if len(accounts) != len(existingNames) {
			names := make([]string, 0, len(accounts))
			for _, account := range accounts {
				names = append(names, account.Name)
			}
			diff := arrayOperations.DifferenceString(existingNames, names)
			for _, name := range diff {
				if !slices.Contains(existingNames, name) {
					return name, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}
