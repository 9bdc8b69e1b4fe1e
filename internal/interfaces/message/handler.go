package message

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// HandlerOpts is the struct given to NewHandler.
type HandlerOpts struct {
	WalletSvc      application.WalletService
	AccountSvc     application.AccountService
	AddressSvc     application.AddressService
	TransactionSvc application.TransactionService
	BackupSvc      application.BackupService
	MetadataSvc    application.MetadataService
}

func (o HandlerOpts) validate() error {
	if o.WalletSvc == nil {
		return fmt.Errorf("missing wallet service")
	}
	if o.AccountSvc == nil {
		return fmt.Errorf("missing account service")
	}
	if o.AddressSvc == nil {
		return fmt.Errorf("missing address service")
	}
	if o.TransactionSvc == nil {
		return fmt.Errorf("missing transaction service")
	}
	if o.BackupSvc == nil {
		return fmt.Errorf("missing backup service")
	}
	if o.MetadataSvc == nil {
		return fmt.Errorf("missing metadata service")
	}
	return nil
}

// Handler dispatches JSON requests to the wallet services and encodes their
// results, or errors, as JSON replies.
type Handler struct {
	walletSvc      application.WalletService
	accountSvc     application.AccountService
	addressSvc     application.AddressService
	transactionSvc application.TransactionService
	backupSvc      application.BackupService
	metadataSvc    application.MetadataService

	methods map[string]methodFunc
}

func NewHandler(opts HandlerOpts) (*Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		walletSvc:      opts.WalletSvc,
		accountSvc:     opts.AccountSvc,
		addressSvc:     opts.AddressSvc,
		transactionSvc: opts.TransactionSvc,
		backupSvc:      opts.BackupSvc,
		metadataSvc:    opts.MetadataSvc,
	}
	h.methods = map[string]methodFunc{
		"wallet.genseed":           h.genSeed,
		"wallet.create":            h.createWallet,
		"wallet.import_mnemonic":   h.importMnemonic,
		"wallet.import_wif":        h.importWIF,
		"wallet.unlock":            h.unlock,
		"wallet.lock":              h.lock,
		"wallet.status":            h.status,
		"wallet.change_password":   h.changePassword,
		"account.create_singlesig": h.createSingleSigAccount,
		"account.create_multisig":  h.createMultisigAccount,
		"account.rename":           h.renameAccount,
		"account.list":             h.listAccounts,
		"account.xpub":             h.cosignerInfo,
		"address.next":             h.nextAddress,
		"address.list":             h.listAddresses,
		"address.change":           h.changeAddress,
		"tx.build":                 h.buildTransaction,
		"tx.sign":                  h.signTransaction,
		"tx.combine":               h.combineTransactions,
		"tx.finalize":              h.finalizeTransaction,
		"tx.broadcast":             h.broadcastTransaction,
		"tx.pending":               h.listPendingTransactions,
		"tx.retry":                 h.retryPendingTransaction,
		"backup.export":            h.exportBackup,
		"backup.import":            h.importBackup,
		"metadata.set_note":        h.setNote,
		"metadata.set_tags":        h.setTags,
		"metadata.get":             h.getMetadata,
	}
	return h, nil
}

// Methods returns the names of the supported methods.
func (h *Handler) Methods() []string {
	names := make([]string, 0, len(h.methods))
	for name := range h.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle decodes a single JSON request and returns the encoded reply. It
// never fails: malformed requests get an error reply.
func (h *Handler) Handle(ctx context.Context, data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		reply := Reply{
			ID:    uuid.New().String(),
			Error: newErrorReply(fmt.Errorf("%w: malformed request", wallet.ErrValidation)),
		}
		return encodeReply(reply)
	}
	return encodeReply(h.HandleRequest(ctx, req))
}

// HandleRequest runs the method of req. Requests without id get a random
// one.
func (h *Handler) HandleRequest(ctx context.Context, req Request) Reply {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}
	reply := Reply{ID: id}

	method, ok := h.methods[req.Method]
	if !ok {
		reply.Error = newErrorReply(
			fmt.Errorf("%w: unknown method %q", wallet.ErrValidation, req.Method),
		)
		return reply
	}

	result, err := method(ctx, req.Params)
	if err != nil {
		entry := log.WithError(err).WithFields(log.Fields{
			"id":     id,
			"method": req.Method,
		})
		if wallet.IsFatal(err) {
			entry.Warn("request failed")
		} else {
			entry.Debug("request failed")
		}
		reply.Error = newErrorReply(err)
		return reply
	}
	if result == nil {
		result = struct{}{}
	}
	reply.Result = result
	return reply
}

func encodeReply(reply Reply) []byte {
	buf, err := json.Marshal(reply)
	if err != nil {
		log.WithError(err).Error("failed to encode reply")
		buf, _ = json.Marshal(Reply{
			ID:    reply.ID,
			Error: &ErrorReply{Kind: KindInternal, Message: "failed to encode reply"},
		})
	}
	return buf
}

// decodeParams unmarshals params into v. Missing params are accepted, unknown
// fields are not.
func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) <= 0 || string(params) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid params: %s", wallet.ErrValidation, err)
	}
	return nil
}
