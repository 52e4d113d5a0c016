// Package audit is the append-only trail of every access control transition
// and every authorization decision of consequence.
//
// # Recording
//
// Successful transitions are recorded with RecordTx inside the transaction that
// performs them, so the entry and the state change commit together:
//
//	err := db.WithTx(ctx, func(tx *sql.Tx) error {
//		// ... mutate ...
//		return recorder.RecordTx(ctx, tx, &audit.Entry{
//			ProjectID:   inv.ProjectID,
//			ActorUserID: approver.UserID,
//			Action:      audit.ActionInvitationApprove,
//			TargetType:  audit.TargetInvitation,
//			TargetID:    inv.ID,
//			Outcome:     audit.OutcomeSuccess,
//			BeforeState: audit.StateOf(before),
//			AfterState:  audit.StateOf(inv),
//		})
//	})
//
// Denials and failures are recorded with Record after the transaction has
// rolled back.
//
// # Reading
//
// Query returns an iter.Seq2 that pages through the project's entries in
// (timestamp, id) order. The sequence is lazy, finite and restartable:
//
//	for entry, err := range recorder.Query(ctx, projectID, audit.Filter{
//		Actions: []audit.Action{audit.ActionMemberRemove},
//	}) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(entry.ActorUserID, entry.TargetID)
//	}
//
// Export streams a sequence as JSON, NDJSON or CSV for compliance review.
package audit
