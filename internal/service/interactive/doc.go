// Package interactive sends template-driven one-shot transactional
// mail (registration confirmation, mailing list confirmation,
// unsubscribe) and consumes the tokenized action links those mails
// embed. Consuming a link applies its state transition and invalidates
// the token in the same durable transaction, so links are single-use.
package interactive
