package main

import (
	"context"
	"fmt"

	"github.com/maoni-app/maoni/core/user"
)

// addTeacher provisions a teacher account and prints the generated
// credentials for the admin to relay.
func (cli *commandLine) addTeacher(fullName, employeeID, department string) error {
	nt := user.NewTeacher{
		FullName:   fullName,
		EmployeeID: employeeID,
		Department: department,
	}
	if err := nt.Validate(); err != nil {
		return err
	}

	creds, err := cli.usrSvc.ProvisionTeacher(context.Background(), nt)
	if err != nil {
		return err
	}

	fmt.Println("Teacher account created:")
	fmt.Printf("  username: %s\n", creds.Username)
	fmt.Printf("  email:    %s\n", creds.Email)
	fmt.Printf("  password: %s\n", creds.Password)
	return nil
}
