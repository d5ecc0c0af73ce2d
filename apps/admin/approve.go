package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/user"
)

// approve activates the account of a pending student.
func (cli *commandLine) approve(ctx context.Context, email, reviewerName string) error {
	var reviewer user.User
	if reviewerName != "" {
		var err error
		if reviewer, err = cli.usrSvc.GetByUsernameOrEmail(ctx, reviewerName); err != nil {
			return errors.Wrap(err, "finding reviewer")
		}
		if !reviewer.IsAdmin() {
			return errors.Errorf("%s is not an admin", reviewerName)
		}
	}

	student, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	profile, err := cli.usrSvc.ApproveStudent(ctx, student.ID, reviewer)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s approved for %s\n", profile.FirstName, profile.LastName, profile.Program)
	return nil
}
