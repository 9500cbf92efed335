package service

import "errors"

// ErrResultNotFound indicates the result was not located.
var ErrResultNotFound = errors.New("result not found")

// ErrUpdateRequestNotFound indicates the update request was not located.
var ErrUpdateRequestNotFound = errors.New("update request not found")

// ErrDuplicateSubmission indicates an active result already exists for the
// (student, subject, exam) triple.
var ErrDuplicateSubmission = errors.New("result already submitted for this student, subject and exam")

// ErrInvalidTransition indicates the entity is no longer in the status the
// transition requires, including losing a concurrent decision race.
var ErrInvalidTransition = errors.New("status transition not allowed from current state")

// ErrReasonRequired indicates a rejection was attempted without a reason.
var ErrReasonRequired = errors.New("a non-empty reason is required")

// ErrNotApprover indicates the actor lacks the exam officer role or the
// approval capability.
var ErrNotApprover = errors.New("actor is not permitted to decide results")

// ErrResultNotApproved indicates an update request targeted a result that is
// not in the approved status.
var ErrResultNotApproved = errors.New("result is not approved")

// ErrScoreExceedsTotal indicates a score surpasses the result's total.
var ErrScoreExceedsTotal = errors.New("score exceeds result total")
