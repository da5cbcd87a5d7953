package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/startup"
)

func (s *Server) createServer(c *fiber.Ctx) error {
	var req createServerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	d, err := req.deployment()
	if err != nil {
		return err
	}

	srv, err := s.app.Creator().Create(c.UserContext(), req.options(), d)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(serverObject(srv))
}

// loadServer resolves :id as a numeric id, a UUID or a short UUID, with
// relations loaded.
func (s *Server) loadServer(c *fiber.Ctx) (*model.Server, error) {
	ctx := c.UserContext()
	ident := c.Params("id")

	var srv *model.Server
	var err error
	if id, perr := strconv.ParseInt(ident, 10, 64); perr == nil {
		srv, err = s.app.Store.GetServer(ctx, id)
	} else {
		srv, err = s.app.Store.GetServerByIdentifier(ctx, ident)
	}
	if err != nil {
		return nil, err
	}
	if err := s.app.Store.LoadRelations(ctx, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// serverAttributes adds the rendered startup command to a server.
type serverAttributes struct {
	*model.Server
	StartupCommand string `json:"startup_command,omitempty"`
}

func serverObject(srv *model.Server) map[string]any {
	attrs := serverAttributes{Server: srv}
	if cmd, err := startup.Preview(srv); err == nil {
		attrs.StartupCommand = cmd
	}
	return object("server", attrs)
}

func (s *Server) getServer(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	return c.JSON(serverObject(srv))
}

func (s *Server) deleteServer(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	force := c.QueryBool("force", false)
	if err := s.app.Deleter().Delete(c.UserContext(), srv, force); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) addAllocation(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	a, err := s.app.Allocations().AddToServer(c.UserContext(), srv)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(object("allocation", a))
}

func (s *Server) allocationParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("allocation"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "allocation must be a numeric id")
	}
	return id, nil
}

func (s *Server) removeAllocation(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	id, err := s.allocationParam(c)
	if err != nil {
		return err
	}
	if err := s.app.Allocations().RemoveFromServer(c.UserContext(), srv, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) setPrimaryAllocation(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	id, err := s.allocationParam(c)
	if err != nil {
		return err
	}
	a, err := s.app.Allocations().SetPrimary(c.UserContext(), srv, id)
	if err != nil {
		return err
	}
	return c.JSON(object("allocation", a))
}

func (s *Server) updateAllocationNotes(c *fiber.Ctx) error {
	srv, err := s.loadServer(c)
	if err != nil {
		return err
	}
	id, err := s.allocationParam(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.app.Allocations().SetNotes(c.UserContext(), srv, id, req.Notes); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) deleteNodeAllocation(c *fiber.Ctx) error {
	nodeID, err := strconv.ParseInt(c.Params("node"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "node must be a numeric id")
	}
	id, err := s.allocationParam(c)
	if err != nil {
		return err
	}
	node, err := s.app.Store.GetNode(c.UserContext(), nodeID)
	if err != nil {
		return err
	}
	if _, err := allocation.NewPool(s.app.Store.Queries).Delete(c.UserContext(), node, id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getUserByExternalID(c *fiber.Ctx) error {
	u, err := s.app.Store.GetUserByExternalID(c.UserContext(), c.Params("external_id"))
	if err != nil {
		return err
	}
	return c.JSON(object("user", u))
}
