package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitprize/fitprize/core/user"
	emailsvc "github.com/fitprize/fitprize/services/email"
	inmemdb "github.com/fitprize/fitprize/storage/database/inmem"
	"github.com/fitprize/fitprize/testutil"
)

const strongPwd = "Xq7#Zr9!Kw"

func setup(t *testing.T) (*commandLine, user.Repository) {
	conf := testutil.NewConfig()
	usrRepo := inmemdb.NewUserRepository(inmemdb.Open())
	validate, _ := testutil.NewValidator()

	return &commandLine{
		usrSvc: user.NewService(
			usrRepo,
			emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{}),
			user.NewOTPStore(conf.Auth.OTPTTL, conf.Auth.ResetTokenTTL),
		),
		validate: validate,
	}, usrRepo
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr bool
	// errIs is compared to the returned error when set
	errIs error
}

func runCLI(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readPasswordFunc = func(int) ([]byte, error) { return []byte(tt.pwd), nil }

			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.errIs != nil:
				assert.Equal(t, tt.errIs, err)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				if assert.NoError(t, err) && check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(command string, _ *sql.DB, _ fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	runCLI(t, cli, []cliTest{
		{name: "no command", errIs: errHelp},
		{name: "unknown command", args: []string{"lol"}, errIs: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, errIs: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErr: true},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErr: true},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErr: true},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
	}, nil)

	assert.Equal(t, []string{"up", "up-to", "down-to", "status"}, ran)
}

func Test_commandLine_createSuperAdmin(t *testing.T) {
	cli, usrRepo := setup(t)
	testutil.CreateUser(t, usrRepo, "Taken", "taken@fitprize.com", "", user.RoleSuperAdmin, "")

	runCLI(t, cli, []cliTest{
		{name: "no args", args: []string{"createsuperadmin"}, errIs: errHelp},
		{name: "no name", args: []string{"createsuperadmin", "-email", "root@fitprize.com"}, pwd: strongPwd, errIs: errHelp},
		{name: "no password", args: []string{"createsuperadmin", "-email", "root@fitprize.com", "-name", "Root"}, errIs: errHelp},
		{name: "weak password", args: []string{"createsuperadmin", "-email", "root@fitprize.com", "-name", "Root"}, pwd: "abc", wantErr: true},
		{name: "invalid email", args: []string{"createsuperadmin", "-email", "root", "-name", "Root"}, pwd: strongPwd, wantErr: true},
		{name: "email taken", args: []string{"createsuperadmin", "-email", "taken@fitprize.com", "-name", "Root"}, pwd: strongPwd, wantErr: true},
		{name: "created", args: []string{"createsuperadmin", "-email", "Root@Fitprize.com", "-name", "Root"}, pwd: strongPwd},
	}, func(t *testing.T, tt cliTest) {
		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "root@fitprize.com"})
		if assert.NoError(t, err) {
			assert.Equal(t, user.RoleSuperAdmin, usr.Role)
			assert.Empty(t, usr.SchoolID)
			assert.NoError(t, usr.CheckPassword(tt.pwd))
		}
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, usrRepo := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "Seymour", "seymour@springfield.edu", "Old#Pwd4Me", user.RoleSuperAdmin, "")

	runCLI(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, errIs: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", usr.Email}, errIs: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "who@test.com"}, pwd: strongPwd, errIs: user.ErrNotFound},
		{name: "password like the email", args: []string{"resetpassword", "-email", usr.Email}, pwd: "seymour@springfield", wantErr: true},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: strongPwd},
	}, func(t *testing.T, tt cliTest) {
		refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
		if assert.NoError(t, err) {
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
			assert.Error(t, refreshed.CheckPassword("Old#Pwd4Me"))
		}
	})
}
