package main

import (
	"context"

	"github.com/fitprize/fitprize/core/user"
)

func (cli *commandLine) createSuperAdmin(name, email, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{Name: name, Email: email, Password: pwd, Role: user.RoleSuperAdmin}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err := cli.usrSvc.Create(ctx, nu)
	return err
}
