package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/validate"
)

// clientCmd manages clients.
var clientCmd = &cobra.Command{
	Use:     "client",
	Aliases: []string{"clients"},
	Short:   "Manage clients",
	Long: `Clients group projects in the planning grid.

Examples:
  timegrid client add acme "Acme Corp"
  timegrid client ls`,
	RunE: runClientList,
}

var clientAddCmd = &cobra.Command{
	Use:   "add SID NAME",
	Short: "Add or rename a client",
	Args:  cobra.ExactArgs(2),
	RunE:  runClientAdd,
}

var clientListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List clients",
	Args:    cobra.NoArgs,
	RunE:    runClientList,
}

// projectCmd manages projects.
var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects", "proj", "pj"},
	Short:   "Manage projects",
	Long: `Projects are the parent rows of the planning grid.

Examples:
  timegrid project add website "Website Redesign" --client acme --color "#3366FF"
  timegrid project ls`,
	RunE: runProjectList,
}

// Project subcommand flags.
var (
	projectAddFlagClient string
	projectAddFlagColor  string
)

var projectAddCmd = &cobra.Command{
	Use:   "add SID NAME",
	Short: "Add or update a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

// userCmd manages users.
var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"users"},
	Short:   "Manage users",
	RunE:    runUserList,
}

var userAddFlagColor string

var userAddCmd = &cobra.Command{
	Use:   "add SID NAME",
	Short: "Add or rename a user",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

// memberCmd manages project memberships.
var memberCmd = &cobra.Command{
	Use:     "member",
	Aliases: []string{"members"},
	Short:   "Manage project members",
	Long: `Members of a project are listed under it in the grid even before
they have any time allocated (with 'timegrid plan --members').

Examples:
  timegrid member add website alice
  timegrid member ls website`,
}

var memberAddCmd = &cobra.Command{
	Use:   "add PROJECT USER",
	Short: "Add a user to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemberAdd,
}

var memberRemoveCmd = &cobra.Command{
	Use:     "rm PROJECT USER",
	Aliases: []string{"remove"},
	Short:   "Remove a user from a project",
	Args:    cobra.ExactArgs(2),
	RunE:    runMemberRemove,
}

var memberListCmd = &cobra.Command{
	Use:     "ls PROJECT",
	Aliases: []string{"list"},
	Short:   "List the members of a project",
	Args:    cobra.ExactArgs(1),
	RunE:    runMemberList,
}

func init() {
	projectAddCmd.Flags().StringVarP(&projectAddFlagClient, "client", "c", "", "Client SID")
	projectAddCmd.Flags().StringVar(&projectAddFlagColor, "color", "", "Hex color (#RRGGBB)")
	userAddCmd.Flags().StringVar(&userAddFlagColor, "color", "", "Hex color (#RRGGBB)")

	clientCmd.AddCommand(clientAddCmd, clientListCmd)
	projectCmd.AddCommand(projectAddCmd, projectListCmd)
	userCmd.AddCommand(userAddCmd, userListCmd)
	memberCmd.AddCommand(memberAddCmd, memberRemoveCmd, memberListCmd)
	rootCmd.AddCommand(clientCmd, projectCmd, userCmd, memberCmd)
}

// checkEntity validates the SID and display name of a new directory entry.
func checkEntity(kind, sid, name string) (string, string, error) {
	sid = parser.NormalizeSID(sid)
	if err := validate.SID(sid); err != nil {
		return "", "", err
	}
	name = validate.SanitizeName(name)
	if err := validate.Name(kind, name); err != nil {
		return "", "", err
	}
	return sid, name, nil
}

func runClientAdd(cmd *cobra.Command, args []string) error {
	sid, name, err := checkEntity("client", args[0], args[1])
	if err != nil {
		return err
	}
	client := model.NewClient(sid, name)
	if err := ctx.Directory.Clients.Create(client); err != nil {
		return err
	}
	return printEntityAdded("client", client.Entity())
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	sid, name, err := checkEntity("project", args[0], args[1])
	if err != nil {
		return err
	}
	if err := validate.HexColor(projectAddFlagColor); err != nil {
		return err
	}
	clientSID := parser.NormalizeSID(projectAddFlagClient)
	if clientSID != "" {
		if _, err := ctx.Directory.Clients.Get(clientSID); err != nil {
			return err
		}
	}

	project := model.NewProject(sid, name, clientSID, projectAddFlagColor)
	// Keep the archived flag of an existing project.
	if cur, err := ctx.Directory.Projects.Get(sid); err == nil {
		project.Archived = cur.Archived
	}
	if err := ctx.Directory.Projects.Create(project); err != nil {
		return err
	}
	return printEntityAdded("project", project.Entity())
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	sid, name, err := checkEntity("user", args[0], args[1])
	if err != nil {
		return err
	}
	if err := validate.HexColor(userAddFlagColor); err != nil {
		return err
	}
	user := model.NewUser(sid, name, userAddFlagColor)
	if err := ctx.Directory.Users.Create(user); err != nil {
		return err
	}
	return printEntityAdded("user", user.Entity())
}

func runMemberAdd(cmd *cobra.Command, args []string) error {
	projectSID, userSID := parser.NormalizeSID(args[0]), parser.NormalizeSID(args[1])
	if _, err := ctx.Directory.Projects.Get(projectSID); err != nil {
		return err
	}
	if _, err := ctx.Directory.Users.Get(userSID); err != nil {
		return err
	}
	if err := ctx.Directory.Memberships.Add(projectSID, userSID); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "project": projectSID, "user": userSID})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Added %s to %s", userSID, projectSID))
	return nil
}

func runMemberRemove(cmd *cobra.Command, args []string) error {
	projectSID, userSID := parser.NormalizeSID(args[0]), parser.NormalizeSID(args[1])
	if err := ctx.Directory.Memberships.Remove(projectSID, userSID); err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "ok", "project": projectSID, "user": userSID})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Removed %s from %s", userSID, projectSID))
	return nil
}

func runMemberList(cmd *cobra.Command, args []string) error {
	projectSID := parser.NormalizeSID(args[0])
	if _, err := ctx.Directory.Projects.Get(projectSID); err != nil {
		return err
	}
	sids, err := ctx.Directory.Memberships.ListByProject(projectSID)
	if err != nil {
		return err
	}
	snap, err := aggregate.Snapshot(cmd.Context(), ctx.Directory)
	if err != nil {
		return err
	}
	members := make([]model.Entity, 0, len(sids))
	for _, sid := range sids {
		members = append(members, model.Entity{ID: sid, Name: snap.Name(sid)})
	}
	model.SortEntities(members)
	return printEntities("member", members)
}

func runClientList(cmd *cobra.Command, args []string) error {
	es, err := ctx.Directory.ListClients(cmd.Context())
	if err != nil {
		return err
	}
	return printEntities("client", es)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	es, err := ctx.Directory.ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	return printEntities("project", es)
}

func runUserList(cmd *cobra.Command, args []string) error {
	es, err := ctx.Directory.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	return printEntities("user", es)
}

func printEntities(kind string, es []model.Entity) error {
	model.SortEntities(es)
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintEntities(kind, es)
	}
	ctx.CLIFormatter().PrintEntities(kind, es)
	return nil
}

func printEntityAdded(kind string, e model.Entity) error {
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintEntities(kind, []model.Entity{e})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Saved %s %s (%s)", kind, e.ID, e.Name))
	return nil
}

// lookupRow checks that the project and user of a row exist.
func lookupRow(project, user string) error {
	if project == "" {
		return errors.NewValidationError(errors.ErrEmptyRowKey, "project", "")
	}
	if _, err := ctx.Directory.Projects.Get(project); err != nil {
		return err
	}
	if user != "" {
		if _, err := ctx.Directory.Users.Get(user); err != nil {
			return err
		}
	}
	return nil
}
