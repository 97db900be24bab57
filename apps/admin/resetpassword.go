package main

import (
	"context"

	"github.com/fitprize/fitprize/core/user"
)

// resetPassword sets the password of the admin account with `email`, applying the password policy.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Name: &usr.Name, Email: &usr.Email, Password: &pwd}
	if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr.ID, uu)
	return err
}
