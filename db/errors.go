package db

import "errors"

var (
	ErrFineAlreadyPaid  = errors.New("fine already paid")
	ErrBookOnLoan       = errors.New("book has copies on loan")
	ErrTotalBelowOnLoan = errors.New("total quantity is below the copies on loan")
	ErrAlreadyDecided   = errors.New("request already decided")
	ErrInviteUsed       = errors.New("invite already used or not found")
)
